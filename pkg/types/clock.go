package types

import (
	"time"

	"github.com/google/uuid"
)

// Clock 抽象时间获取，让业务逻辑在测试中可确定
type Clock interface {
	Now() time.Time
}

// RealClock 返回真实时间
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator 抽象唯一 ID 生成 (运行 ID)
type IDGenerator interface {
	New() string
}

// UUIDGenerator 生成随机 UUID
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
