// Package snowflake 雪花 ID 生成器，用于委托号、合约号等全局唯一 ID
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// 起始时间戳 (2025-01-01 00:00:00 UTC)
	epoch int64 = 1735689600000

	nodeIDBits   = 10
	sequenceBits = 12

	maxNodeID   = -1 ^ (-1 << nodeIDBits)   // 1023
	maxSequence = -1 ^ (-1 << sequenceBits) // 4095

	nodeIDShift    = sequenceBits
	timestampShift = sequenceBits + nodeIDBits
)

var (
	ErrInvalidNodeID  = errors.New("node ID must be between 0 and 1023")
	ErrClockMovedBack = errors.New("clock moved backwards")
)

// Generator 雪花 ID 生成器
type Generator struct {
	mu       sync.Mutex
	nodeID   int64
	sequence int64
	lastMs   int64
}

// New 创建生成器
func New(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, ErrInvalidNodeID
	}
	return &Generator{nodeID: nodeID}, nil
}

// Generate 生成 ID
func (g *Generator) Generate() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < g.lastMs {
		return 0, ErrClockMovedBack
	}

	if now == g.lastMs {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// 序列号用尽，等待下一毫秒
			for now <= g.lastMs {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = now

	return ((now - epoch) << timestampShift) |
		(g.nodeID << nodeIDShift) |
		g.sequence, nil
}

// 全局生成器
var defaultGenerator *Generator

// Init 初始化全局生成器
func Init(nodeID int64) error {
	g, err := New(nodeID)
	if err != nil {
		return err
	}
	defaultGenerator = g
	return nil
}

// NextID 使用全局生成器生成 ID
func NextID() (int64, error) {
	if defaultGenerator == nil {
		return 0, errors.New("snowflake not initialized")
	}
	return defaultGenerator.Generate()
}

// MustNextID 使用全局生成器生成 ID，panic on error
func MustNextID() int64 {
	id, err := NextID()
	if err != nil {
		panic(err)
	}
	return id
}
