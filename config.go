package caliper

import "github.com/spf13/viper"

// ConfigEntry describes one key in the caliper configuration
// namespace, mirroring the original's ConfigSet::Entry table (key,
// type, default, short and long descriptions).
type ConfigEntry struct {
	Key       string
	Type      string
	Default   string
	ShortDesc string
	LongDesc  string
}

var configTable = []ConfigEntry{
	{
		Key:       "node_pool_size",
		Type:      "uint",
		Default:   "100",
		ShortDesc: "Size of the caliper node pool",
		LongDesc:  "Initial capacity reserved in the node vector.",
	},
	{
		Key:     "output",
		Type:    "string",
		Default: "csv",
		ShortDesc: "Caliper metadata output format",
		LongDesc: "Caliper metadata output format. One of\n" +
			"   csv:  CSV writer\n" +
			"   json: JSON writer\n" +
			"   none: No output",
	},
}

// Config is the typed view over the "caliper" configuration
// namespace, backed by viper. Values default per configTable and can
// be overridden by environment variables prefixed CALIPER_.
type Config struct {
	v *viper.Viper
}

// NewConfig builds a Config with the documented defaults, picking up
// CALIPER_NODE_POOL_SIZE and CALIPER_OUTPUT overrides from the
// environment.
func NewConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix("caliper")
	v.AutomaticEnv()

	for _, e := range configTable {
		v.SetDefault(e.Key, e.Default)
	}

	return &Config{v: v}
}

// NodePoolSize returns the initial capacity reserved in the node
// vector.
func (c *Config) NodePoolSize() uint {
	return uint(c.v.GetUint("node_pool_size"))
}

// Output returns the name of the writer service write-metadata will
// use. "none" disables output.
func (c *Config) Output() string {
	return c.v.GetString("output")
}

// Set overrides a single configuration key programmatically, mostly
// useful for tests and the caliperctl CLI's flags.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Describe returns the full table of configuration entries this
// namespace exposes, for operator tooling to print.
func Describe() []ConfigEntry {
	out := make([]ConfigEntry, len(configTable))
	copy(out, configTable)
	return out
}
