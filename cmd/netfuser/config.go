package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/dotnet-toolset/Netfuser-sub001/cmd/utils"
	"github.com/dotnet-toolset/Netfuser-sub001/core/obfuscator"
	"github.com/dotnet-toolset/Netfuser-sub001/log"
)

var dumpConfigCommand = &cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Export configuration values in a TOML format",
	ArgsUsage:   "<dumpfile (optional)>",
	Flags:       utils.MangleFlags,
	Description: `Export configuration values in TOML format (to stdout by default).`,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type netfuserConfig struct {
	Obfuscator obfuscator.Config
}

func loadConfig(file string, cfg *netfuserConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the defaults, then the config file, then the flags.
func makeConfig(ctx *cli.Context) (netfuserConfig, error) {
	cfg := netfuserConfig{Obfuscator: obfuscator.DefaultConfig}

	if file := ctx.String(utils.ConfigFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
		log.Debug("Loaded config file", "file", file)
	}
	utils.SetObfuscatorConfig(ctx, &cfg.Obfuscator)
	if err := cfg.Obfuscator.Mangle.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.WriteString(comment)
	dump.Write(out)

	return nil
}

const comment = "# Note: this config doesn't contain the logging settings, which are flags only.\n\n"
