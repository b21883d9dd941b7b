package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	clarity "github.com/btt-go/btt-clarity"
)

// app 保存命令之间共享的依赖，在 PersistentPreRunE 中初始化，由 execute 负责释放。
type app struct {
	cfgFile string
	debug   bool

	v        *viper.Viper
	logger   *zap.Logger
	settings *clarity.Settings
	rdb      *redis.Client
	fs       afero.Fs
}

func newApp() *app {
	return &app{
		v:  viper.New(),
		fs: afero.NewOsFs(),
	}
}

// execute 运行命令并在结束后释放资源，命令失败时同样释放。
func execute(a *app, cmd *cobra.Command) error {
	defer a.close()
	return cmd.Execute()
}

func newRootCmdWithApp(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "clarity",
		Short:         "Manage the Microsoft Clarity tracking script cache",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./clarity.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newSyncCmd(a),
		newURLCmd(a),
		newPurgeCmd(a),
		newCheckCmd(a),
		newDashboardCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) init() error {
	if a.logger == nil {
		config := zap.NewProductionConfig()
		if a.debug {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err := config.Build()
		if err != nil {
			return fmt.Errorf("build logger failed: %w", err)
		}
		a.logger = logger
	}

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("clarity")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
	}
	if err := a.v.ReadInConfig(); err != nil {
		// 没有配置文件时仅使用默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || a.cfgFile != "" {
			return fmt.Errorf("read config failed: %w", err)
		}
	}

	settings, err := clarity.LoadSettings(a.v)
	if err != nil {
		return err
	}
	a.settings = settings

	if settings.Redis.Prefix != "" {
		clarity.SetPrefix(settings.Redis.Prefix)
	}
	if a.rdb == nil {
		a.rdb = redis.NewClient(&redis.Options{Addr: settings.Redis.Addr})
	}

	a.logger.Debug("settings loaded",
		zap.String("config", a.v.ConfigFileUsed()),
		zap.String("project", settings.ProjectID),
		zap.Bool("local_cache", settings.LocalCache))
	return nil
}

func (a *app) close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) scriptCache() *clarity.ScriptCache {
	s := a.settings
	return clarity.NewScriptCache(a.fs,
		clarity.NewHTTPFetcher(nil),
		clarity.NewRedisStateStore(a.rdb),
		clarity.WithLogger(a.logger),
		clarity.WithFlusher(clarity.NewRedisFlusher(a.rdb, "clarity cli")),
		clarity.WithGzip(s.Cache.Gzip),
		clarity.WithCacheDir(s.Cache.Dir),
		clarity.WithPublicPath(s.Cache.PublicPath),
		clarity.WithBaseURL(s.Cache.BaseURL),
	)
}

func (a *app) evaluator() *clarity.Evaluator {
	return clarity.NewEvaluator(nil, clarity.NewGlobMatcher(a.settings.Site.FrontPath))
}
