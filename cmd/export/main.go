package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ikkim/bookstore-backend/config"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	"github.com/ikkim/bookstore-backend/internal/db"
	"github.com/ikkim/bookstore-backend/internal/report"
)

func main() {
	out := flag.String("out", "orders.xlsx", "path of the workbook to write")
	status := flag.String("status", "", "only export orders in this status (received, dispatched, delivered)")
	userID := flag.Uint("user", 0, "only export orders of this user id")
	flag.Parse()

	filter := repository.OrderFilter{UserID: *userID}
	if *status != "" {
		parsed, ok := model.ParseOrderStatus(*status)
		if !ok {
			log.Fatalf("Unknown status %q", *status)
		}
		filter.Status = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	gdb, err := db.Initialize(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close(gdb)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	orders, err := repository.NewOrderRepository(gdb).FindAll(ctx, filter)
	if err != nil {
		log.Fatal("Failed to load orders:", err)
	}

	data, err := report.OrdersWorkbook(orders)
	if err != nil {
		log.Fatal("Failed to build workbook:", err)
	}

	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatal("Failed to write workbook:", err)
	}
	fmt.Printf("Exported %d orders to %s\n", len(orders), *out)
}
