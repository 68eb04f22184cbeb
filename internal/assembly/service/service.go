package service

import (
	"github.com/bitfantasy/packhouse/internal/assembly/relay"
	"github.com/bitfantasy/packhouse/internal/assembly/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Assembly *AssemblyService
	Bundle   *BundleService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, db *gorm.DB, eventRelay *relay.Relay) *Services {
	assemblySvc := NewAssemblyService(repos, db)
	if eventRelay != nil {
		assemblySvc.SetRelay(eventRelay)
	}
	return &Services{
		Assembly: assemblySvc,
		Bundle:   NewBundleService(repos),
	}
}

func newID() string {
	return uuid.New().String()[:32]
}
