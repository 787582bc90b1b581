package service

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	appErrors "github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/internal/report"
	"github.com/ikkim/bookstore-backend/internal/storage"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"gorm.io/gorm"
)

var ErrUserHasOrders = errors.New("user has orders and cannot be deleted")

const (
	DashboardStatsKey = "admin:dashboard:stats"
	DashboardStatsTTL = 5 * time.Minute

	exportFolder = "exports/orders"
)

// StatsCache is satisfied by *redis.Store.
type StatsCache interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiry time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
}

// ArchiveStore is satisfied by *storage.S3Storage.
type ArchiveStore interface {
	ArchiveKey(folder, ext string) string
	Upload(ctx context.Context, key, contentType string, body []byte) error
	PresignGet(ctx context.Context, key string) (*storage.PresignedURL, error)
}

type DashboardStats struct {
	TotalOrders    int64            `json:"total_orders"`
	TotalUsers     int64            `json:"total_users"`
	TotalReviews   int64            `json:"total_reviews"`
	TotalMessages  int64            `json:"total_messages"`
	Revenue        float64          `json:"revenue"`
	OrdersByStatus map[string]int64 `json:"orders_by_status"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

type AdminService interface {
	DashboardStats(ctx context.Context) (*DashboardStats, error)
	RefreshStats(ctx context.Context) (*DashboardStats, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, id uint) error
	ExportOrders(ctx context.Context, filter repository.OrderFilter) ([]byte, error)
	ArchiveOrders(ctx context.Context, filter repository.OrderFilter) (*storage.PresignedURL, error)
}

type adminService struct {
	userRepo    repository.UserRepository
	orderRepo   repository.OrderRepository
	reviewRepo  *repository.ReviewRepository
	messageRepo repository.MessageRepository
	cache       StatsCache
	archive     ArchiveStore
}

// NewAdminService accepts a nil cache or archive; stats are then computed on
// every request and archiving reports storage.ErrStorageDisabled.
func NewAdminService(
	userRepo repository.UserRepository,
	orderRepo repository.OrderRepository,
	reviewRepo *repository.ReviewRepository,
	messageRepo repository.MessageRepository,
	cache StatsCache,
	archive ArchiveStore,
) AdminService {
	return &adminService{
		userRepo:    userRepo,
		orderRepo:   orderRepo,
		reviewRepo:  reviewRepo,
		messageRepo: messageRepo,
		cache:       cache,
		archive:     archive,
	}
}

func (s *adminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	if s.cache != nil {
		var cached DashboardStats
		hit, err := s.cache.GetJSON(ctx, DashboardStatsKey, &cached)
		if err != nil {
			logger.Warn("Dashboard stats cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		} else if hit {
			return &cached, nil
		}
	}
	return s.RefreshStats(ctx)
}

// RefreshStats recomputes the dashboard figures and stores them in the cache
func (s *adminService) RefreshStats(ctx context.Context) (*DashboardStats, error) {
	stats, err := s.computeStats(ctx)
	if err != nil {
		logger.Error("Failed to compute dashboard stats", err)
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, DashboardStatsKey, stats, DashboardStatsTTL); err != nil {
			logger.Warn("Dashboard stats cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return stats, nil
}

func (s *adminService) computeStats(ctx context.Context) (*DashboardStats, error) {
	var (
		stats DashboardStats
		err   error
	)
	if stats.TotalOrders, err = s.orderRepo.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalUsers, err = s.userRepo.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalReviews, err = s.reviewRepo.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalMessages, err = s.messageRepo.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Revenue, err = s.orderRepo.SumRevenue(ctx); err != nil {
		return nil, err
	}

	byStatus, err := s.orderRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats.OrdersByStatus = make(map[string]int64, len(byStatus))
	for status, n := range byStatus {
		stats.OrdersByStatus[string(status)] = n
	}
	stats.GeneratedAt = time.Now().UTC()
	return &stats, nil
}

func (s *adminService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.userRepo.FindAll(ctx)
}

func (s *adminService) DeleteUser(ctx context.Context, id uint) error {
	err := s.userRepo.Delete(ctx, id)
	switch {
	case err == nil:
		logger.Info("User deleted by admin", map[string]interface{}{
			"user_id": id,
		})
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrUserNotFound
	case appErrors.IsForeignKey(err):
		return ErrUserHasOrders
	default:
		return err
	}
}

func (s *adminService) ExportOrders(ctx context.Context, filter repository.OrderFilter) ([]byte, error) {
	orders, err := s.orderRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	data, err := report.OrdersWorkbook(orders)
	if err != nil {
		logger.Error("Failed to render order export", err, map[string]interface{}{
			"orders": len(orders),
		})
		return nil, err
	}
	return data, nil
}

// ArchiveOrders uploads an export and returns a time-limited download link
func (s *adminService) ArchiveOrders(ctx context.Context, filter repository.OrderFilter) (*storage.PresignedURL, error) {
	if s.archive == nil {
		return nil, storage.ErrStorageDisabled
	}

	data, err := s.ExportOrders(ctx, filter)
	if err != nil {
		return nil, err
	}

	key := s.archive.ArchiveKey(exportFolder, ".xlsx")
	if err := s.archive.Upload(ctx, key, storage.ContentTypeXLSX, data); err != nil {
		logger.Error("Failed to upload order export", err, map[string]interface{}{
			"key": key,
		})
		return nil, err
	}

	link, err := s.archive.PresignGet(ctx, key)
	if err != nil {
		return nil, err
	}

	logger.Info("Order export archived", map[string]interface{}{
		"key":   key,
		"bytes": len(data),
	})
	return link, nil
}
