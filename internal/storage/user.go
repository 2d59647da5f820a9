package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// User 公众号用户
type User struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	OpenID     string    `gorm:"column:open_id;size:64;uniqueIndex;not null"`
	CreateTime time.Time `gorm:"autoCreateTime"`
	UpdateTime time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (User) TableName() string {
	return "user"
}

// UserRepo 用户仓储
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建用户仓储
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// FindByOpenID 按 OpenID 查用户，返回用户 ID 和是否存在
func (r *UserRepo) FindByOpenID(ctx context.Context, openID string) (int64, bool, error) {
	var user User
	err := r.db.WithContext(ctx).Where("open_id = ?", openID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return user.ID, true, nil
}

// Create 登记新用户，返回用户 ID
func (r *UserRepo) Create(ctx context.Context, openID string) (int64, error) {
	user := User{OpenID: openID}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return 0, err
	}
	return user.ID, nil
}
