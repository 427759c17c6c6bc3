package flags

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.senan.xyz/flagconf"

	"go.senan.xyz/nddedup"
	"go.senan.xyz/nddedup/notifications"
)

func EnvPrefix(prefix string) {
	flagconf.ReadEnvPrefix = func(_ *flag.FlagSet) string {
		return prefix
	}
}

func Parse() {
	userConfig, _ := os.UserConfigDir()
	defaultConfigPath := filepath.Join(userConfig, nddedup.Name, "config")
	configPath := flag.String("config-path", defaultConfigPath, "path config file")

	printVersion := flag.Bool("version", false, "print the version")
	printConfig := flag.Bool("config", false, "print the parsed config")

	flag.TextVar(&logLevel, "log-level", &logLevel, "set the logging level")

	flag.Parse()
	flagconf.ParseEnv()
	flagconf.ParseConfig(*configPath)

	if *printVersion {
		fmt.Printf("%s %s\n", flag.CommandLine.Name(), nddedup.Version)
		os.Exit(0)
	}
	if *printConfig {
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("%-16s %s\n", f.Name, f.Value)
		})
		os.Exit(0)
	}
}

func Notifications() *notifications.Notifications {
	var r notifications.Notifications
	flag.Var(&notificationsParser{&r}, "notification-uri", "add a shoutrrr notification uri for an event")
	return &r
}

func PreferredExts() *[]string {
	var r []string
	flag.Var(&extsParser{&r}, "pref-ext", "prefer this file extension when choosing a keeper (stackable)")
	return &r
}
