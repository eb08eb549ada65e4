package sandbox

const defaultStderrMaxBytes int64 = 64 * 1024

// Config controls sandbox engine behavior.
type Config struct {
	CgroupRoot     string `yaml:"cgroupRoot"`
	EnableCgroup   bool   `yaml:"enableCgroup"`
	StderrMaxBytes int64  `yaml:"stderrMaxBytes"`

	// InitPath names the sandbox-init helper. When it and SeccompProfile
	// are set, programs start through the helper, which loads the profile
	// and execs the program.
	InitPath       string `yaml:"initPath"`
	SeccompProfile string `yaml:"seccompProfile"`
}

func (c *Config) applyDefaults() {
	if c.StderrMaxBytes <= 0 {
		c.StderrMaxBytes = defaultStderrMaxBytes
	}
}

// argv returns the command line that starts cmd.
func (c *Config) argv(cmd []string) []string {
	if c.InitPath == "" || c.SeccompProfile == "" {
		return cmd
	}
	out := make([]string, 0, len(cmd)+4)
	out = append(out, c.InitPath, "-profile", c.SeccompProfile, "--")
	return append(out, cmd...)
}

// limitedBuffer keeps the first max bytes written to it and drops the rest.
type limitedBuffer struct {
	max int64
	buf []byte
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - int64(len(b.buf)); room > 0 {
		if int64(len(p)) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return string(b.buf) }
