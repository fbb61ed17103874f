package redis

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixPlayIdemResult：购票幂等“结果缓存”Key 的前缀。
	// 作用：缓存某个 idempotency key 对应的第一次成功结果（BuyOutput JSON），用于后续重复请求直接返回。
	PrefixPlayIdemResult = "play:idem:result:"
	// PrefixPlayIdemLock：购票幂等“进行中锁”Key 的前缀。
	// 作用：使用 SETNX + TTL 标记 idempotency key 正在处理，吸收瞬时重复请求，减轻数据库压力。
	PrefixPlayIdemLock = "play:idem:lock:"

	// PrefixRoundStatus：当前局状态缓存（售票截止时间等），用于前端倒计时等快速查询
	PrefixRoundStatus = "lotto:round:"
	// PrefixRoundResult：开奖结果缓存
	PrefixRoundResult = "lotto:result:"
	// KeyCurrentRound：指向当前售票局的状态缓存
	KeyCurrentRound = "lotto:round:current"
)

// IdemResultKey：构造幂等“结果缓存”的完整 Key。
// 形如：play:idem:result:{idempotency_key}
func IdemResultKey(k string) string { return PrefixPlayIdemResult + k }

// IdemLockKey：构造幂等“进行中锁”的完整 Key。
// 形如：play:idem:lock:{idempotency_key}
func IdemLockKey(k string) string { return PrefixPlayIdemLock + k }

// RoundStatusKey：构造局状态缓存 Key。形如：lotto:round:{round_id}
func RoundStatusKey(roundID string) string { return PrefixRoundStatus + roundID }

// RoundResultKey：构造开奖结果缓存 Key。形如：lotto:result:{round_id}
func RoundResultKey(roundID string) string { return PrefixRoundResult + roundID }
