package workspace

const chunkBits = 6

const chunkSize = 1 << chunkBits

// fileTable is a copy-on-write array of files split into fixed chunks.
// set copies the chunk index and one chunk, so untouched chunks are shared
// between snapshots and can be compared by identity.
type fileTable struct {
	chunks [][]*File
	n      int
}

func newFileTable(files []*File) fileTable {
	t := fileTable{n: len(files)}
	for start := 0; start < len(files); start += chunkSize {
		end := min(start+chunkSize, len(files))
		chunk := make([]*File, end-start)
		copy(chunk, files[start:end])
		t.chunks = append(t.chunks, chunk)
	}
	return t
}

func (t fileTable) len() int { return t.n }

func (t fileTable) get(id FileID) *File {
	if int(id) >= t.n {
		return nil
	}
	return t.chunks[id>>chunkBits][id&(chunkSize-1)]
}

func (t fileTable) set(id FileID, f *File) fileTable {
	ci := int(id >> chunkBits)
	chunks := make([][]*File, len(t.chunks))
	copy(chunks, t.chunks)
	chunk := make([]*File, len(t.chunks[ci]))
	copy(chunk, t.chunks[ci])
	chunk[id&(chunkSize-1)] = f
	chunks[ci] = chunk
	return fileTable{chunks: chunks, n: t.n}
}

// sameChunk reports whether chunk i is shared by both tables.
func sameChunk(a, b fileTable, i int) bool {
	ca, cb := a.chunks[i], b.chunks[i]
	return len(ca) > 0 && len(ca) == len(cb) && &ca[0] == &cb[0]
}
