package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/pflag"

	"github.com/xxxsen/romvault/internal/config"
)

// ConfigAction is the single operation a `config` invocation performs —
// spec.md §6 "config -l | -g KEY | -s KEY VALUE | -u KEY | -a KEY VALUE
// | -r KEY VALUE" is six mutually exclusive actions on one closed-set
// key/value store (internal/store's SettingDAO).
type ConfigAction string

const (
	ConfigList   ConfigAction = "list"   // -l
	ConfigGet    ConfigAction = "get"    // -g KEY
	ConfigSet    ConfigAction = "set"    // -s KEY VALUE
	ConfigUnset  ConfigAction = "unset"  // -u KEY
	ConfigAdd    ConfigAction = "add"    // -a KEY VALUE: append to an ordered-list key
	ConfigRemove ConfigAction = "remove" // -r KEY VALUE: remove from an ordered-list key
)

// ConfigOptions carries the config flag surface.
type ConfigOptions struct {
	Action ConfigAction
	Key    string
	Value  string
}

// ConfigCommand runs `config`.
type ConfigCommand struct {
	deps       *Deps
	opts       ConfigOptions
	actionFlag *string
}

func NewConfigCommand(deps *Deps, opts ConfigOptions) *ConfigCommand {
	return &ConfigCommand{deps: deps, opts: opts}
}

func (c *ConfigCommand) Name() string { return "config" }

func (c *ConfigCommand) Desc() string {
	return "List or edit Settings (spec.md §6 config -l | -g | -s | -u | -a | -r)"
}

func (c *ConfigCommand) Init(fs *pflag.FlagSet) {
	action := string(ConfigList)
	fs.StringVar(&action, "action", action, "one of list|get|set|unset|add|remove")
	fs.StringVar(&c.opts.Key, "key", "", "setting key")
	fs.StringVar(&c.opts.Value, "value", "", "setting value (set/add/remove)")
	c.actionFlag = &action
}

func (c *ConfigCommand) PreRun(ctx context.Context) error {
	if c.actionFlag != nil {
		c.opts.Action = ConfigAction(*c.actionFlag)
	}
	switch c.opts.Action {
	case ConfigList, ConfigGet, ConfigSet, ConfigUnset, ConfigAdd, ConfigRemove:
	default:
		return fmt.Errorf("config: unknown action %q", c.opts.Action)
	}
	if c.deps == nil {
		c.deps = CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("config: app not initialized")
	}
	return nil
}

func (c *ConfigCommand) PostRun(ctx context.Context) error { return nil }

func (c *ConfigCommand) Run(ctx context.Context) error {
	out, err := RunConfig(ctx, c.deps, c.opts)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

// RunConfig is config's doer, returning the text a CLI would print so the
// webapi's UpdateSetting service function can share the same validation
// path without duplicating it.
func RunConfig(ctx context.Context, deps *Deps, opts ConfigOptions) (string, error) {
	switch opts.Action {
	case ConfigList:
		return renderConfigList(ctx, deps)
	case ConfigGet:
		v, err := deps.Store.Settings.Get(ctx, config.SettingKey(opts.Key))
		if err != nil {
			return "", err
		}
		return v + "\n", nil
	case ConfigSet:
		if err := deps.Store.Settings.Set(ctx, config.SettingKey(opts.Key), opts.Value); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s=%s\n", opts.Key, opts.Value), nil
	case ConfigUnset:
		if err := deps.Store.Settings.Set(ctx, config.SettingKey(opts.Key), config.DefaultValue(config.SettingKey(opts.Key))); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s reset to default\n", opts.Key), nil
	case ConfigAdd, ConfigRemove:
		return configMutateList(ctx, deps, opts)
	default:
		return "", fmt.Errorf("config: unknown action %q", opts.Action)
	}
}

func configMutateList(ctx context.Context, deps *Deps, opts ConfigOptions) (string, error) {
	key := config.SettingKey(opts.Key)
	raw, err := deps.Store.Settings.Get(ctx, key)
	if err != nil {
		return "", err
	}
	values := config.DecodeList(raw)

	if opts.Action == ConfigAdd {
		for _, v := range values {
			if v == opts.Value {
				return fmt.Sprintf("%s already contains %s\n", opts.Key, opts.Value), nil
			}
		}
		values = append(values, opts.Value)
	} else {
		kept := values[:0]
		for _, v := range values {
			if v != opts.Value {
				kept = append(kept, v)
			}
		}
		values = kept
	}

	encoded := config.EncodeList(values)
	if err := deps.Store.Settings.Set(ctx, key, encoded); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s=%s\n", opts.Key, encoded), nil
}

func renderConfigList(ctx context.Context, deps *Deps) (string, error) {
	stored, err := deps.Store.Settings.List(ctx)
	if err != nil {
		return "", err
	}

	keys := config.AllSettingKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := ""
	for _, k := range keys {
		v, ok := stored[k]
		if !ok {
			v = config.DefaultValue(k)
		}
		out += fmt.Sprintf("%s=%s\n", k, v)
	}
	return out, nil
}

func init() {
	RegisterRunner("config", func() IRunner { return &ConfigCommand{} })
}
