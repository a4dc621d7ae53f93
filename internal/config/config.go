package config

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Huangmachi/exp-IPMAN/internal/compiler"
	"github.com/Huangmachi/exp-IPMAN/internal/logging"
	"github.com/Huangmachi/exp-IPMAN/internal/model"
	"github.com/Huangmachi/exp-IPMAN/internal/provision"
)

type Config struct {
	Density    int               `mapstructure:"density"`
	Fabric     Fabric            `mapstructure:"fabric"`
	Addressing Addressing        `mapstructure:"addressing"`
	Compile    CompileConfig     `mapstructure:"compile"`
	Links      provision.Profile `mapstructure:"links"`
	Gateway    GatewayConfig     `mapstructure:"gateway"`
	Output     string            `mapstructure:"output"`
	Render     RenderConfig      `mapstructure:"render"`
	Log        logging.Config    `mapstructure:"log"`
}

type Fabric struct {
	Edge        int `mapstructure:"edge"`
	Aggregation int `mapstructure:"aggregation"`
	Core        int `mapstructure:"core"`
	Metro       int `mapstructure:"metro"`
	CDN         int `mapstructure:"cdn"`
	Servers     int `mapstructure:"servers"`
}

type Addressing struct {
	Base string `mapstructure:"base"`
}

type CompileConfig struct {
	Scope  string `mapstructure:"scope"` // host-server, all-pairs
	Verify bool   `mapstructure:"verify"`
}

type GatewayConfig struct {
	Driver      string        `mapstructure:"driver"` // ofctl, script
	OfctlPath   string        `mapstructure:"ofctl_path"`
	VsctlPath   string        `mapstructure:"vsctl_path"`
	Protocol    string        `mapstructure:"protocol"`
	SetProtocol bool          `mapstructure:"set_protocol"`
	Parallelism int           `mapstructure:"parallelism"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RenderConfig struct {
	Format      string `mapstructure:"format"` // table, yaml, json, ofctl, d2
	Theme       string `mapstructure:"theme"`
	Direction   string `mapstructure:"direction"`
	DetailLevel string `mapstructure:"detail_level"` // minimal, standard, detailed
	AutoRender  bool   `mapstructure:"auto_render"`
	ImageFormat string `mapstructure:"image_format"` // svg, png
}

// ValidationError reports a config problem with a suggested fix.
type ValidationError struct {
	Field      string // dotted path, e.g. "gateway.parallelism"
	Message    string // what's wrong
	Suggestion string // how to fix it
}

// Formats lists the output formats the CLI can write.
var Formats = []string{"table", "yaml", "json", "ofctl", "d2"}

// Drivers lists the gateway drivers the CLI can open. The memory driver
// keeps nothing once the process exits, so it is left to library callers.
var Drivers = []string{"ofctl", "script"}

// Default returns the configuration of the testbed fabric at density 15.
func Default() *Config {
	spec := model.DefaultSpec(15)
	return &Config{
		Density: spec.Density,
		Fabric: Fabric{
			Edge:        spec.Edge,
			Aggregation: spec.Aggregation,
			Core:        spec.Core,
			Metro:       spec.Metro,
			CDN:         spec.CDN,
			Servers:     spec.Servers,
		},
		Addressing: Addressing{Base: "10.0.0.0/8"},
		Compile:    CompileConfig{Scope: string(compiler.ScopeHostServer), Verify: true},
		Links:      provision.DefaultProfile(),
		Gateway: GatewayConfig{
			Driver:      "ofctl",
			OfctlPath:   "ovs-ofctl",
			VsctlPath:   "ovs-vsctl",
			Protocol:    "OpenFlow13",
			SetProtocol: true,
			Parallelism: 4,
			Timeout:     30 * time.Second,
		},
		Render: RenderConfig{
			Format:      "table",
			Theme:       "default",
			Direction:   "down",
			DetailLevel: "standard",
			ImageFormat: "svg",
		},
		Log: logging.Config{Level: "warn"},
	}
}

// EnvPrefix prefixes the environment variable of every key, with dots
// turned into underscores: IPMAN_RENDER_FORMAT sets render.format.
const EnvPrefix = "IPMAN"

// BindEnv makes viper read IPMAN_* variables.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setDefaults registers every key with viper. Unmarshal only consults the
// environment for keys viper knows.
func setDefaults(c *Config) {
	for key, value := range map[string]any{
		"density":              c.Density,
		"fabric.edge":          c.Fabric.Edge,
		"fabric.aggregation":   c.Fabric.Aggregation,
		"fabric.core":          c.Fabric.Core,
		"fabric.metro":         c.Fabric.Metro,
		"fabric.cdn":           c.Fabric.CDN,
		"fabric.servers":       c.Fabric.Servers,
		"addressing.base":      c.Addressing.Base,
		"compile.scope":        c.Compile.Scope,
		"compile.verify":       c.Compile.Verify,
		"links.gz_bw":          c.Links.MetroMbps,
		"links.cdn_bw":         c.Links.CDNMbps,
		"links.core_agg_bw":    c.Links.CoreAggMbps,
		"links.agg_edge_bw":    c.Links.AggEdgeMbps,
		"links.edge_host_bw":   c.Links.EdgeHostMbps,
		"links.max_queue_size": c.Links.MaxQueueSize,
		"gateway.driver":       c.Gateway.Driver,
		"gateway.ofctl_path":   c.Gateway.OfctlPath,
		"gateway.vsctl_path":   c.Gateway.VsctlPath,
		"gateway.protocol":     c.Gateway.Protocol,
		"gateway.set_protocol": c.Gateway.SetProtocol,
		"gateway.parallelism":  c.Gateway.Parallelism,
		"gateway.timeout":      c.Gateway.Timeout,
		"output":               c.Output,
		"render.format":        c.Render.Format,
		"render.theme":         c.Render.Theme,
		"render.direction":     c.Render.Direction,
		"render.detail_level":  c.Render.DetailLevel,
		"render.auto_render":   c.Render.AutoRender,
		"render.image_format":  c.Render.ImageFormat,
		"log.level":            c.Log.Level,
		"log.development":      c.Log.Development,
	} {
		viper.SetDefault(key, value)
	}
}

// Load fills the defaults and overlays whatever viper has read, including
// IPMAN_* variables once BindEnv has run.
func Load() (*Config, error) {
	cfg := Default()
	setDefaults(cfg)
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Spec returns the topology shape described by the config.
func (c *Config) Spec() model.Spec {
	return model.Spec{
		Density:     c.Density,
		Edge:        c.Fabric.Edge,
		Aggregation: c.Fabric.Aggregation,
		Core:        c.Fabric.Core,
		Metro:       c.Fabric.Metro,
		CDN:         c.Fabric.CDN,
		Servers:     c.Fabric.Servers,
	}
}

// Base parses the addressing base prefix.
func (c *Config) Base() (netip.Prefix, error) {
	p, err := netip.ParsePrefix(c.Addressing.Base)
	if err != nil {
		return netip.Prefix{}, &model.ConfigurationError{Field: "addressing.base", Value: c.Addressing.Base, Reason: err.Error()}
	}
	return p, nil
}

// Validate checks every value that can be checked without building the
// fabric.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if err := c.Spec().Validate(); err != nil {
		field := "fabric"
		if cerr, ok := err.(*model.ConfigurationError); ok {
			field = cerr.Field
			if field != "density" {
				field = "fabric." + field
			}
		}
		errs = append(errs, ValidationError{
			Field:      field,
			Message:    err.Error(),
			Suggestion: "the testbed uses edge=2 aggregation=2 core=2 metro=2 cdn=1 servers=3",
		})
	}
	if c.Density > 254 {
		errs = append(errs, ValidationError{
			Field:      "density",
			Message:    fmt.Sprintf("%d hosts per edge switch do not fit the last address octet", c.Density),
			Suggestion: "use a density between 1 and 254",
		})
	}
	if p, err := c.Base(); err != nil || !p.Addr().Is4() || p.Bits() != 8 {
		errs = append(errs, ValidationError{
			Field:      "addressing.base",
			Message:    fmt.Sprintf("%q is not an IPv4 /8", c.Addressing.Base),
			Suggestion: "e.g. 10.0.0.0/8",
		})
	}
	if _, err := compiler.ParseScope(c.Compile.Scope); err != nil {
		errs = append(errs, ValidationError{
			Field:      "compile.scope",
			Message:    fmt.Sprintf("unknown scope %q", c.Compile.Scope),
			Suggestion: "use host-server or all-pairs",
		})
	}
	if err := c.Links.Validate(); err != nil {
		field := "links"
		if cerr, ok := err.(*model.ConfigurationError); ok {
			field = cerr.Field
		}
		errs = append(errs, ValidationError{
			Field:      field,
			Message:    err.Error(),
			Suggestion: "bandwidths are in Mbit/s and must be positive",
		})
	}
	if !slices.Contains(Drivers, c.Gateway.Driver) {
		errs = append(errs, ValidationError{
			Field:      "gateway.driver",
			Message:    fmt.Sprintf("unknown driver %q", c.Gateway.Driver),
			Suggestion: fmt.Sprintf("use one of %v", Drivers),
		})
	}
	if c.Gateway.Parallelism < 1 {
		errs = append(errs, ValidationError{
			Field:      "gateway.parallelism",
			Message:    "must be at least 1",
			Suggestion: "set gateway.parallelism: 4",
		})
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, ValidationError{
			Field:      "gateway.timeout",
			Message:    "must be positive",
			Suggestion: "e.g. 30s",
		})
	}
	if !slices.Contains(Formats, c.Render.Format) {
		errs = append(errs, ValidationError{
			Field:      "render.format",
			Message:    fmt.Sprintf("unknown format %q", c.Render.Format),
			Suggestion: fmt.Sprintf("use one of %v", Formats),
		})
	}

	return errs
}
