package cmd

import (
	"context"
	"log"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:          "obdcan",
	Short:        "ISO 15765-4 OBD-II adapter",
	Long:         `An ELM327 style OBD-II adapter speaking ISO 15765-4 over a CAN driver`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagConfig   = "config"
	flagAdapter  = "adapter"
	flagPort     = "port"
	flagBaudrate = "baudrate"
	flagCANRate  = "canrate"
	flagDebug    = "debug"
	flagProfile  = "profile"
	flagVerbose  = "verbose"
)

var configFile string

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)
	cobra.OnInitialize(func() {
		initConfig()
		bindFlags(rootCmd)
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, flagConfig, "", "config file (default is $HOME/.obdcan.yaml)")
	pf.StringP(flagAdapter, "a", "virtual", "CAN driver to use, see 'obdcan adapters'")
	pf.StringP(flagPort, "p", "*", "com-port of the CAN driver, * = select")
	pf.IntP(flagBaudrate, "b", 115200, "com-port baudrate")
	pf.Float64P(flagCANRate, "r", 500, "CAN rate in kbit/s")
	pf.BoolP(flagDebug, "d", false, "driver debug mode")
	pf.BoolP(flagVerbose, "v", false, "protocol debug traces")
	pf.String(flagProfile, "", "adapter property profile (YAML)")
}

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.Fatalf("finding home directory: %v", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".obdcan")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("OBDCAN")
	viper.AutomaticEnv()

	if err := readConfig(); err != nil {
		log.Fatalf("reading config file: %v", err)
	}
}

// readConfig tolerates a missing default config file, an explicit one must exist
func readConfig() error {
	err := viper.ReadInConfig()
	if err == nil {
		return nil
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); ok && configFile == "" {
		return nil
	}
	return err
}

// bindFlags lets config file and environment values fill flags the user did not set
func bindFlags(cmd *cobra.Command) {
	viper.BindPFlags(cmd.PersistentFlags())
	viper.BindPFlags(cmd.Flags())
	set := func(f *pflag.Flag) {
		if !f.Changed && viper.IsSet(f.Name) && viper.GetString(f.Name) != "" {
			f.Value.Set(viper.GetString(f.Name))
		}
	}
	cmd.PersistentFlags().VisitAll(set)
	cmd.Flags().VisitAll(set)
	for _, c := range cmd.Commands() {
		bindFlags(c)
	}
}
