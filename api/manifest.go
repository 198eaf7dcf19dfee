package api

// Manifest is the root of a reform.hcl workspace manifest.
//
//	project "api" {
//	  root     = "services/api"
//	  language = "go"
//	  files    = ["**/*.go"]
//	  links    = ["../shared/version.go"]
//	}
type Manifest struct {
	Projects []ProjectBlock `hcl:"project,block"`
}

// ProjectBlock declares one project of the workspace.
type ProjectBlock struct {
	// Name is the block label and must be unique within the manifest.
	Name string `hcl:"name,label"`
	// Root is the project directory relative to the manifest.
	Root string `hcl:"root,optional"`
	// Language is a free-form tag; it does not restrict which files load.
	Language string `hcl:"language,optional"`
	// Files are glob patterns relative to Root. Empty means every file.
	Files []string `hcl:"files,optional"`
	// Links are extra files relative to Root that the project compiles in,
	// typically shared with another project.
	Links []string `hcl:"links,optional"`
}
