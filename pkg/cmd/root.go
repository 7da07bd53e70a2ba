package cmd

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fvutils/dv-transaction-trace/pkg/cmd/dump"
	"github.com/fvutils/dv-transaction-trace/pkg/cmd/record"
	"github.com/fvutils/dv-transaction-trace/pkg/config"
)

func init() {
	// debug flag
	pflag.BoolVar(&config.Debug, "debug", false, "Enable debug mode")
}

// NewViper creates a new viper instance configured.
func NewViper() *viper.Viper {
	vp := viper.New()

	// read config from a file
	vp.SetConfigName("config") // name of config file (without extension)
	vp.SetConfigType("yaml")   // useful if the given config file does not have the extension in the name
	vp.AddConfigPath(".")      // look for a config in the working directory first

	// read config from environment variables
	vp.SetEnvPrefix("dvtt") // env var must start with DVTT_
	// replace - by _ for environment variable names
	// (eg: the env var for time-units is TIME_UNITS)
	vp.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vp.AutomaticEnv() // read in environment variables that match

	// config file 可选，没有就用 flag/env
	if err := vp.ReadInConfig(); err == nil {
		logrus.WithField("config", vp.ConfigFileUsed()).Debug("DVTT loaded config file")
	}
	return vp
}

func New(vp *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "dvtt",
		Short: "Record and inspect hardware simulation transaction traces",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config.ApplyDebug()
			if config.Debug {
				logrus.Info("enabled debug mode")
			}
			return nil
		},
	}
	return root
}

func Execute() {
	// 全局初始化 VP 配置
	vp := NewViper()

	root := New(vp)
	root.AddCommand(record.New(vp))
	root.AddCommand(dump.New(vp))

	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
