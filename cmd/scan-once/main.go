package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"arb-scanner/config"
	"arb-scanner/gateway"
	"arb-scanner/infrastructure/logger"
	"arb-scanner/internal/scanner"
	"arb-scanner/normalize"
)

// 执行一次扫描并以表格打印结果；两个交易所都失败时退出码为 2。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	threshold := flag.Float64("threshold", -1, "价差阈值（百分比），负数表示使用配置值")
	policy := flag.String("policy", "", "判定策略 signed|directional，留空使用配置值")
	timeout := flag.Duration("timeout", 30*time.Second, "整体超时")
	verbose := flag.Bool("v", false, "输出结构化日志")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *threshold >= 0 {
		cfg.Scan.ThresholdPct = *threshold
	}
	if *policy != "" {
		cfg.Scan.Policy = *policy
	}

	lg := logger.NewNop()
	if *verbose {
		logCfg := logger.DefaultConfig()
		logCfg.Format = "console"
		if lg, err = logger.New(logCfg); err != nil {
			log.Fatalf("初始化日志失败: %v", err)
		}
		defer lg.Close()
	}

	settings, err := scanner.NewSettings(cfg.Scan)
	if err != nil {
		log.Fatalf("参数非法: %v", err)
	}
	watch, err := cfg.Pairs()
	if err != nil {
		log.Fatalf("监控列表非法: %v", err)
	}
	binance, raydium := gateway.BuildVenueClients(gateway.ClientOptions{
		BinanceURL:   cfg.Venues.Binance.BaseURL,
		RaydiumURL:   cfg.Venues.Raydium.BaseURL,
		Timeout:      cfg.Gateway.Timeout(),
		RestRate:     cfg.Gateway.RestRate,
		RestBurst:    cfg.Gateway.RestBurst,
		MaxBodyBytes: cfg.Gateway.MaxBodyBytes(),
	}, nil)
	s, err := scanner.New(scanner.Options{
		CEX: scanner.BinanceSource(binance),
		DEX: scanner.RaydiumSource(raydium, normalize.Raydium{
			Aliases:           cfg.Aliases,
			IncludeUnofficial: cfg.Venues.Raydium.IncludeUnofficial,
		}),
		Watch:    watch,
		Settings: settings,
		Logger:   lg,
	})
	if err != nil {
		log.Fatalf("初始化扫描器失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	r := s.ScanOnce(ctx)

	printReport(r)
	if r.Status == scanner.StatusUnavailable {
		os.Exit(2)
	}
}

func printReport(r scanner.Report) {
	fmt.Printf("cycle=%s status=%s policy=%s threshold=%.2f%% watched=%d duration=%dms\n",
		r.CycleID, r.Status, r.Policy, r.ThresholdPct, r.Watched, r.DurationMs)
	for venue, n := range r.Quotes {
		fmt.Printf("  %s quotes=%d\n", venue, n)
	}
	for _, e := range r.Errors {
		fmt.Printf("  error %s (%s): %s\n", e.Venue, e.Kind, e.Message)
	}
	fmt.Println(r.Summary())
	if len(r.Opportunities) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAIR\tA\tPRICE A\tB\tPRICE B\tDIRECTION\tPROFIT %")
	for _, o := range r.Opportunities {
		direction := string(o.Direction)
		if direction == "" {
			direction = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%g\t%s\t%g\t%s\t%.2f\n",
			o.Pair, o.VenueA, o.PriceA, o.VenueB, o.PriceB, direction, o.ProfitPct)
	}
	w.Flush()
}
