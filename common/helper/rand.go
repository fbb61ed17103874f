package helper

import (
	"time"

	"golang.org/x/exp/rand"
)

// NewRand 返回一个时间种子随机源（开奖引擎默认源，测试可注入固定种子）
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
}

// SampleUnique 从 pool 中无放回抽取 n 个元素（Fisher-Yates 前缀洗牌）
// n 超过池子大小时返回整个池子的乱序副本
func SampleUnique(rng *rand.Rand, pool []int, n int) []int {
	cp := make([]int, len(pool))
	copy(cp, pool)
	if n > len(cp) {
		n = len(cp)
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(cp)-i)
		cp[i], cp[j] = cp[j], cp[i]
	}
	return cp[:n]
}
