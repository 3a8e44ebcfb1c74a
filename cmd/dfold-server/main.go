package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	dfoldrpc "datafold/pkg/api/dfoldrpc/v1"
	"datafold/pkg/app"
	"datafold/pkg/config"
	"datafold/pkg/server"
	"datafold/pkg/service"

	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is $HOME/.dfold/config.yaml)")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	flag.Parse()

	if err := config.Load(*cfgFile); err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	if *addr != "" {
		viper.Set("server.addr", *addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(ctx context.Context) error {
	// 2. Init Core Application
	application, err := app.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer application.Close()
	logger := application.Logger

	// 3. Setup Network
	listenAddr := viper.GetString("server.addr")
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	// 4. Setup gRPC Server
	grpcServer := server.New(logger)
	dfoldrpc.RegisterDatasetServiceServer(grpcServer, service.NewDatasetService(application))
	// Enable Reflection for debugging tools (grpcurl)
	reflection.Register(grpcServer)

	// 5. Serve 与 Shutdown 放在同一个 errgroup 里，任何一个结束都会结束另一个
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("🚀 gRPC server listening", "addr", lis.Addr().String(), "config", config.Used())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("⚠️  Shutting down server...")
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "👋 Server stopped.")
	return nil
}
