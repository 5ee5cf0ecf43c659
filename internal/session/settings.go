// Settings loaded from flags, environment and config file.
package session

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variables, e.g. DELVE_SESSION_INTERPRETER.
const EnvPrefix = "delve_session"

// Settings are the user-tunable parts of a session.
type Settings struct {
	Interpreter []string
	DlvPath     string
	StateDir    string
	BuildFlags  string
	ToolName    string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("interpreter", strings.Join(DefaultInterpreter, " "))
	v.SetDefault("state-dir", ".dlv")
	v.SetDefault("tool-name", DefaultToolName)
	v.SetDefault("dlv-path", "")
	v.SetDefault("build-flags", "")
}

// ReadConfig configures v the way the command line tool does: env prefix,
// optional config file at path, or .delve-session.yaml searched in the
// current directory and the user config directory. A missing file is not an
// error.
func ReadConfig(v *viper.Viper, path string, searchDirs ...string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".delve-session")
		v.SetConfigType("yaml")
		for _, dir := range searchDirs {
			v.AddConfigPath(dir)
		}
	}
	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	return nil
}

// Load extracts Settings from v.
func Load(v *viper.Viper) Settings {
	return Settings{
		Interpreter: strings.Fields(v.GetString("interpreter")),
		DlvPath:     v.GetString("dlv-path"),
		StateDir:    v.GetString("state-dir"),
		BuildFlags:  v.GetString("build-flags"),
		ToolName:    v.GetString("tool-name"),
	}
}

// Options turns settings into Config options.
func (s Settings) Options() []Option {
	return []Option{WithInterpreter(s.Interpreter), WithToolName(s.ToolName)}
}
