package service

import (
	"sort"

	"golang.org/x/exp/rand"

	"lotto-server/common/helper"
	"lotto-server/internal/model"
)

// 开奖规则常量
const (
	// MinNumber/MaxNumber 可选号码范围 [1,90]
	MinNumber = 1
	MaxNumber = 90
	// DrawSize 每局开出的号码个数
	DrawSize = 6
	// TotalLoseRounds 连续必输局数，周期计数器达到该值的那一局必出一张中奖票
	TotalLoseRounds = 5
	// PartialWinMatch 中奖局强制命中的号码个数
	PartialWinMatch = 3
)

// payoutMultipliers 命中个数 -> 派彩倍数；命中不足3个不派彩
var payoutMultipliers = map[int]int64{
	3: 5,
	4: 7,
	5: 15,
	6: 50,
}

// DrawResult 一次开奖计算的产物（纯内存值，落库由结算事务负责）
type DrawResult struct {
	Draw         []int         // 最终开奖号码（升序；中奖局去重后可能不足6个）
	Winner       *model.Ticket // 指定中奖票，无则为 nil
	Matched      int           // 中奖票命中个数
	WinAmount    float64       // 派彩金额（= 票额 x 倍数）
	CycleCounter int           // 本局使用的计数器值
	NextCounter  int           // 结算后应写回的计数器值
}

// ComputeDraw 根据本局全部票与周期计数器计算开奖结果
// 刻意的非公平周期：计数器未到 TotalLoseRounds 时从"无人选过的号码"里开奖保证无人中；
// 到达后随机挑一张票，把前3个开奖位强制改写为该票排序后的前3个号码
// rng 由调用方注入，便于用固定种子做确定性验证
func ComputeDraw(tickets []model.Ticket, cycleCounter int, rng *rand.Rand) DrawResult {
	res := DrawResult{CycleCounter: cycleCounter}

	if cycleCounter < TotalLoseRounds {
		res.Draw = loseDraw(tickets, rng)
	} else {
		res.Draw, res.Winner = winDraw(tickets, rng)
		if res.Winner != nil {
			res.Matched = countMatches(res.Winner.NumbersList(), res.Draw)
			if mult, ok := payoutMultipliers[res.Matched]; ok {
				res.WinAmount = res.Winner.Amount * float64(mult)
			}
			if res.Matched < PartialWinMatch {
				// 构造上不可能，防御脏票数据
				res.Winner = nil
				res.WinAmount = 0
			}
		}
	}

	res.NextCounter = NextCycleCounter(cycleCounter)
	return res
}

// loseDraw 输局开奖：从所有已投注号码的补集中抽6个
// 补集不足6个（玩家合计覆盖了至少85个号码）时退化为全范围抽样，
// 此时可能意外命中，属于接受的兜底行为，不做修正
func loseDraw(tickets []model.Ticket, rng *rand.Rand) []int {
	played := make(map[int]bool)
	for i := range tickets {
		for _, n := range tickets[i].NumbersList() {
			played[n] = true
		}
	}

	complement := make([]int, 0, MaxNumber)
	for n := MinNumber; n <= MaxNumber; n++ {
		if !played[n] {
			complement = append(complement, n)
		}
	}

	pool := complement
	if len(complement) < DrawSize {
		pool = fullRange()
	}

	draw := helper.SampleUnique(rng, pool, DrawSize)
	sort.Ints(draw)
	return draw
}

// winDraw 赢局开奖：随机指定一张中奖票并强制前3位命中
// 无票时仍开奖但无中奖者
// 强制改写后的6个值去重再排序，票号与随机位撞号时开奖号码会少于6个，
// 该收缩行为沿自线上历史数据，保留不修
func winDraw(tickets []model.Ticket, rng *rand.Rand) ([]int, *model.Ticket) {
	draw := helper.SampleUnique(rng, fullRange(), DrawSize)

	if len(tickets) == 0 {
		sort.Ints(draw)
		return draw, nil
	}

	winner := &tickets[rng.Intn(len(tickets))]
	nums := winner.NumbersList()
	for i := 0; i < PartialWinMatch && i < len(nums); i++ {
		draw[i] = nums[i]
	}

	seen := make(map[int]bool, DrawSize)
	deduped := draw[:0]
	for _, n := range draw {
		if !seen[n] {
			seen[n] = true
			deduped = append(deduped, n)
		}
	}
	sort.Ints(deduped)
	return deduped, winner
}

// NextCycleCounter 计数器自增，越过 TotalLoseRounds 回绕到1
func NextCycleCounter(cur int) int {
	next := cur + 1
	if next > TotalLoseRounds {
		next = 1
	}
	return next
}

// countMatches 统计票号与开奖号码的交集大小
func countMatches(ticketNums, draw []int) int {
	inDraw := make(map[int]bool, len(draw))
	for _, n := range draw {
		inDraw[n] = true
	}
	matched := 0
	for _, n := range ticketNums {
		if inDraw[n] {
			matched++
		}
	}
	return matched
}

func fullRange() []int {
	out := make([]int, 0, MaxNumber-MinNumber+1)
	for n := MinNumber; n <= MaxNumber; n++ {
		out = append(out, n)
	}
	return out
}
