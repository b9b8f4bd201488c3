package localfs

// Config defines the configuration options for the local filesystem store.
type Config struct {
	// Root is the directory every stored path is resolved against.
	Root string `yaml:"root" validate:"required"`

	// DirPerm is the permission used for directories created on demand.
	DirPerm uint32 `yaml:"dir_perm" default:"0755"`

	// FilePerm is the permission of written files.
	FilePerm uint32 `yaml:"file_perm" default:"0644"`
}
