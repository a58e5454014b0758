package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"lighter-grid-bot-go/internal/bot"
	"lighter-grid-bot-go/internal/config"
	"lighter-grid-bot-go/internal/exchange"
	"lighter-grid-bot-go/internal/logger"
	"lighter-grid-bot-go/internal/metrics"
	"lighter-grid-bot-go/internal/models"
	"lighter-grid-bot-go/internal/persistence"
	"lighter-grid-bot-go/internal/reporter"
	"lighter-grid-bot-go/internal/sizing"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `用法: bot <command> [flags]

命令:
  grid        运行网格机器人 (默认)
  open_limit  按保证金和杠杆挂一笔限价单
  cancel_all  撤销某个市场上的全部挂单
  report      打印成交日志中某次运行的统计

使用 "bot <command> -h" 查看各命令的参数。
`

func main() {
	// 为了在加载.env或配置时就能记录日志，先用默认配置初始化
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	cmd, args := "grid", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "grid":
		err = runGrid(args)
	case "open_limit":
		err = runOpenLimit(args)
	case "cancel_all":
		err = runCancelAll(args)
	case "report":
		err = runReport(args)
	case "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		logger.S().Fatalf("未知的命令: %s", cmd)
	}
	if err != nil {
		logger.S().Fatal(err)
	}
}

// loadConfig 加载 JSON 配置并用其中的设置重新初始化日志。
// 配置文件不存在时使用默认配置。
func loadConfig(path string) (*models.Config, error) {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.S().Infof("未找到配置文件 %s，使用默认配置。", path)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("无法加载配置文件: %w", err)
	}
	logger.InitLogger(cfg.LogConfig)
	return cfg, nil
}

func resolveToken(cfg *models.Config, token string) (sizing.TokenSpec, error) {
	registry := sizing.NewRegistry(cfg.Tokens)
	spec, err := registry.Resolve(token, cfg.AllowDefaultSizing)
	if err != nil {
		return spec, fmt.Errorf("无法解析代币 %s (已知: %s): %w", token, strings.Join(registry.Tokens(), ", "), err)
	}
	return spec, nil
}

// newLiveExchange 从环境变量读取账户信息，连接签名服务并创建 Lighter 客户端
func newLiveExchange(cfg *models.Config) (*exchange.LighterExchange, error) {
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.IsTestnet {
		logger.S().Info("正在使用 Lighter 测试网...")
	} else {
		logger.S().Info("正在使用 Lighter 主网...")
	}
	signer := exchange.NewHTTPSigner(cfg.SignerURL, cfg.AccountIndex, cfg.APIKeyIndex, logger.L())
	return exchange.NewLighterExchange(cfg.BaseURL, cfg.AccountIndex, cfg.APIKeyIndex, signer, logger.L()), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runGrid 运行网格机器人直到收到退出信号
func runGrid(args []string) error {
	fs := flag.NewFlagSet("grid", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "path to the config file")
	mode := fs.String("mode", "live", "running mode: live or paper")
	token := fs.String("token", "", "token symbol, overrides grid.token")
	direction := fs.String("direction", "", "NEUTRAL, LONG or SHORT, overrides grid.direction")
	leverage := fs.Int("leverage", 0, "leverage, overrides grid.leverage")
	grids := fs.Int("grids", 0, "number of grid levels, overrides grid.grid_count")
	investment := fs.Float64("investment", 0, "total margin in USD, overrides grid.investment")
	lower := fs.Float64("lower", 0, "lower price, overrides grid.lower_price")
	upper := fs.Float64("upper", 0, "upper price, overrides grid.upper_price")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer logger.S().Sync()

	if *token != "" {
		cfg.Grid.Token = strings.ToUpper(*token)
	}
	if *direction != "" {
		d, err := models.ParseDirection(*direction)
		if err != nil {
			return err
		}
		cfg.Grid.Direction = d
	}
	if *leverage > 0 {
		cfg.Grid.Leverage = *leverage
	}
	if *grids > 0 {
		cfg.Grid.GridCount = *grids
	}
	if *investment > 0 {
		cfg.Grid.Investment = *investment
	}
	if *lower > 0 {
		cfg.Grid.LowerPrice = *lower
	}
	if *upper > 0 {
		cfg.Grid.UpperPrice = *upper
	}
	if err := config.Validate(&cfg.Grid); err != nil {
		return fmt.Errorf("网格参数无效: %w", err)
	}

	spec, err := resolveToken(cfg, cfg.Grid.Token)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var ex exchange.Exchange
	var paper *exchange.PaperExchange
	switch *mode {
	case "live":
		logger.S().Info("--- 启动实时交易模式 ---")
		live, err := newLiveExchange(cfg)
		if err != nil {
			return err
		}
		if cfg.UseBookFeed {
			stream := exchange.NewBookStream(cfg.WSBaseURL, spec.MarketID, logger.L())
			go stream.Run(ctx)
			live.UseBookStream(stream)
		}
		ex = live
	case "paper":
		logger.S().Info("--- 启动模拟交易模式 ---")
		start := cfg.PaperStartPrice
		if start <= 0 {
			start = (cfg.Grid.LowerPrice + cfg.Grid.UpperPrice) / 2
		}
		tick := math.Pow(10, -float64(spec.PricePrecision))
		paper = exchange.NewPaperExchange(spec, spec.RoundPrice(start-tick), spec.RoundPrice(start+tick))
		go paper.RandomWalk(ctx, time.Second, 0.0005, rand.New(rand.NewSource(time.Now().UnixNano())))
		ex = paper
	default:
		return fmt.Errorf("未知的运行模式: %s。请选择 'live' 或 'paper'。", *mode)
	}
	defer ex.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, logger.L()); err != nil {
				logger.S().Warnf("监控服务退出: %v", err)
			}
		}()
	}

	runID := persistence.NewRunID()
	opts := bot.Options{RunID: runID}
	if cfg.DBPath != "" {
		repo, err := persistence.NewBadgerRepository(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("无法打开成交日志: %w", err)
		}
		defer repo.Close()
		recorder := persistence.NewRecorder(repo, logger.L())
		recorder.Start()
		defer recorder.Stop()
		opts.Journal = recorder
	}
	logger.L().Info("本次运行", zap.String("run_id", runID), zap.String("token", spec.Symbol), zap.Int("market", spec.MarketID))

	gridBot := bot.NewGridTradingBot(cfg, spec, ex, logger.L(), opts)
	summary, err := gridBot.Run(ctx)
	if err != nil {
		return fmt.Errorf("机器人启动失败: %w", err)
	}

	reporter.PrintSummary(os.Stdout, summary)
	if paper != nil {
		coins, pnl := paper.Position()
		logger.S().Infof("模拟盘持仓: %.6f %s, 按中间价计算的盈亏: %.4f USD", coins, spec.Symbol, pnl)
	}
	return nil
}

// runOpenLimit 挂出一笔限价单，数量由保证金、杠杆和价格计算
func runOpenLimit(args []string) error {
	fs := flag.NewFlagSet("open_limit", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "path to the config file")
	token := fs.String("token", "BTC", "token symbol")
	side := fs.String("side", "Long", "Long (buy) or Short (sell)")
	margin := fs.Float64("margin", 0, "margin in USD")
	price := fs.Float64("price", 0, "limit price")
	leverage := fs.Int("leverage", 1, "leverage")
	reduceOnly := fs.Bool("reduce-only", false, "only reduce an existing position")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer logger.S().Sync()

	direction, err := models.ParseDirection(*side)
	if err != nil || direction == models.Neutral {
		return fmt.Errorf("side 必须是 Long 或 Short，收到 %q", *side)
	}
	spec, err := resolveToken(cfg, strings.ToUpper(*token))
	if err != nil {
		return err
	}
	base, err := spec.BaseAmount(*margin, *leverage, *price)
	if err != nil {
		return err
	}
	if base <= 0 {
		return fmt.Errorf("订单数量为零: margin=%.2f leverage=%d price=%.4f", *margin, *leverage, *price)
	}

	ex, err := newLiveExchange(cfg)
	if err != nil {
		return err
	}
	defer ex.Close()

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := ex.CheckClient(ctx); err != nil {
		return fmt.Errorf("客户端校验失败: %w", err)
	}
	nonce, err := ex.NextNonce(ctx)
	if err != nil {
		return fmt.Errorf("获取 nonce 失败: %w", err)
	}

	req := models.OrderRequest{
		MarketID:         spec.MarketID,
		ClientOrderIndex: nonce,
		BaseAmount:       base,
		PriceInt:         spec.PriceToInt(*price),
		IsAsk:            direction == models.Short,
		ReduceOnly:       *reduceOnly,
	}
	res, err := ex.PlaceLimitOrder(ctx, req)
	if err != nil {
		return fmt.Errorf("下单失败: %w", err)
	}
	logger.L().Info("限价单已提交",
		zap.String("token", spec.Symbol),
		zap.String("side", models.SideName(req.IsAsk)),
		zap.Float64("price", *price),
		zap.Float64("coins", spec.CoinAmount(base)),
		zap.Bool("reduce_only", *reduceOnly),
		zap.String("tx_hash", res.TxHash))
	return nil
}

// runCancelAll 撤销某个市场上的全部挂单
func runCancelAll(args []string) error {
	fs := flag.NewFlagSet("cancel_all", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "path to the config file")
	token := fs.String("token", "", "token symbol, defaults to grid.token")
	market := fs.Int("market", -1, "market id, used instead of -token when set")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer logger.S().Sync()

	// 撤单只需要市场ID，不需要精度表
	var marketID int
	var symbol string
	if *market >= 0 {
		marketID = *market
		symbol = sizing.NewRegistry(cfg.Tokens).Symbol(marketID)
	} else {
		symbol = cfg.Grid.Token
		if *token != "" {
			symbol = strings.ToUpper(*token)
		}
		spec, err := resolveToken(cfg, symbol)
		if err != nil {
			return err
		}
		marketID = spec.MarketID
	}

	ex, err := newLiveExchange(cfg)
	if err != nil {
		return err
	}
	defer ex.Close()

	ctx, stop := signalContext()
	defer stop()

	if err := ex.CheckClient(ctx); err != nil {
		return fmt.Errorf("客户端校验失败: %w", err)
	}
	logger.S().Infof("撤销 %s (market %d) 上的全部挂单", symbol, marketID)
	_, err = bot.CancelAll(ctx, ex, marketID, logger.L().With(zap.String("token", symbol), zap.Int("market", marketID)))
	return err
}

// runReport 从成交日志读取一次运行的统计与成交明细
func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "path to the config file")
	dbPath := fs.String("db", "", "journal directory, defaults to db_path from the config")
	runID := fs.String("run", "", "run id printed at startup")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	defer logger.S().Sync()

	if *dbPath == "" {
		*dbPath = cfg.DBPath
	}
	if *dbPath == "" || *runID == "" {
		return errors.New("report 需要 -run 以及 -db 或配置中的 db_path")
	}

	repo, err := persistence.NewBadgerRepository(*dbPath)
	if err != nil {
		return fmt.Errorf("无法打开成交日志: %w", err)
	}
	defer repo.Close()

	summary, err := repo.LoadSummary(*runID)
	if err != nil {
		return err
	}
	fills, err := repo.LoadFills(*runID)
	if err != nil {
		return err
	}
	if summary == nil && len(fills) == 0 {
		return fmt.Errorf("未找到运行记录: %s", *runID)
	}

	if summary != nil {
		reporter.PrintSummary(os.Stdout, *summary)
	}
	reporter.PrintFills(os.Stdout, fills)
	return nil
}
