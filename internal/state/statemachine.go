package state

import "fmt"

// State 单局生命周期状态
const (
	StateAccepting = "accepting" // 售票中(开局~accept_until)
	StateClosed    = "closed"    // 已截止(accept_until已过, 待开奖结算)
	StateFinalized = "finalized" // 已结算(开奖+派彩完成)
)

// Event 单局事件
const (
	EvtExpire = "expire" // 售票窗口到期
	EvtSettle = "settle" // 开奖并结算
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
func NextState(cur, evt string) (string, error) {
	switch cur {
	case StateAccepting:
		if evt == EvtExpire {
			return StateClosed, nil
		}
	case StateClosed:
		if evt == EvtSettle {
			return StateFinalized, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}

// AcceptingWindowOpen 判断售票窗口是否开放（毫秒时间戳，左闭右开）
// accept_until 时刻本身已关闭：该时刻拒绝售票且允许结算
func AcceptingWindowOpen(nowMs, acceptUntilMs int64) bool {
	return nowMs < acceptUntilMs
}

// FromFlags 将持久化的两个布尔标志映射为状态名
// is_accepting=1 ∧ is_finished=0 -> accepting
// is_accepting=0 ∧ is_finished=0 -> closed
// is_finished=1                  -> finalized
func FromFlags(isAccepting, isFinished bool) string {
	if isFinished {
		return StateFinalized
	}
	if isAccepting {
		return StateAccepting
	}
	return StateClosed
}
