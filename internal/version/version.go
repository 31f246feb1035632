package version

// Values are set at build time using -ldflags.
var (
	Version   = "dev"
	Built     = ""
	GitCommit = ""
)

type Info struct {
	Version   string `json:"version"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Built:     Built,
		GitCommit: GitCommit,
	}
}

// String renders the version with the commit when one is known.
func (info Info) String() string {
	if info.GitCommit == "" {
		return info.Version
	}
	return info.Version + " (" + info.GitCommit + ")"
}
