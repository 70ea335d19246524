// Registration race storm: fires many concurrent RegisterToken calls with
// the same token value and checks that every call succeeds while exactly
// one row survives.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freshmart/order-core/internal/adapter/storage"
	"github.com/freshmart/order-core/internal/core/service"
)

const (
	mysqlDSN      = "root:root@tcp(localhost:3306)/freshmart?parseTime=true"
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.InitSchema(ctx); err != nil {
		log.Fatalf("failed to init schema: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	deviceService := service.NewDeviceService(adapter, logger)

	token := "stress-" + uuid.NewString()
	defer db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ?`, token)

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			deviceID := fmt.Sprintf("device-%d", id)
			_, err := deviceService.RegisterToken(ctx, token, deviceID, false)
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
				log.Printf("register %d failed: %v", id, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	var rowCount int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_tokens WHERE token = ?`, token).Scan(&rowCount)

	fmt.Println("========== REGISTRATION RACE RESULTS ==========")
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", successCount.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Surviving Rows:   %d\n", rowCount)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("===============================================")

	if successCount.Load() == totalRequests && rowCount == 1 {
		fmt.Println("PASS: all registrations succeeded, one row survives")
	} else {
		fmt.Printf("FAIL: expected %d successes and 1 row, got %d/%d\n",
			totalRequests, successCount.Load(), rowCount)
	}
}
