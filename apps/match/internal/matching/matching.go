// Package matching 提供纯内存的配对决策逻辑。
// 不碰存储、不做状态变更，方便单测和替换策略。
package matching

import (
	"strings"
	"time"
)

// Candidate 参与撮合的候选人快照。
type Candidate struct {
	UserUUID  string    // 用户 UUID
	JoinedAt  time.Time // 入队时间
	Gender    int8      // 性别（0 未知）
	Age       int16     // 年龄（0 未知）
	Interests []string  // 兴趣标签
	Filters   Filters   // 入队时声明的偏好
}

// Filters 入队时可选的配对偏好，零值表示不限。
type Filters struct {
	Gender    int8     `json:"gender,omitempty"`    // 期望对方性别，0 不限
	MinAge    int16    `json:"min_age,omitempty"`   // 期望对方最小年龄
	MaxAge    int16    `json:"max_age,omitempty"`   // 期望对方最大年龄
	Interests []string `json:"interests,omitempty"` // 期望共同兴趣，任一交集即可
}

// Predicate 判断两名候选人能否配成一对。
// 实现必须对称：Predicate(a,b) 与 Predicate(b,a) 结果一致。
type Predicate func(a, b Candidate) bool

// AlwaysCompatible 默认策略，任意两人可配对。
func AlwaysCompatible(a, b Candidate) bool {
	return true
}

// PreferenceCompatible 双向校验两人的偏好，双方都接受才算兼容。
func PreferenceCompatible(a, b Candidate) bool {
	return acceptedBy(a.Filters, b) && acceptedBy(b.Filters, a)
}

// acceptedBy 判断候选人 c 是否满足偏好 f。
func acceptedBy(f Filters, c Candidate) bool {
	if f.Gender != 0 && c.Gender != f.Gender {
		return false
	}
	if f.MinAge > 0 && c.Age < f.MinAge {
		return false
	}
	if f.MaxAge > 0 && (c.Age == 0 || c.Age > f.MaxAge) {
		return false
	}
	if len(f.Interests) > 0 && !hasCommonInterest(f.Interests, c.Interests) {
		return false
	}
	return true
}

func hasCommonInterest(want, have []string) bool {
	if len(have) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[strings.ToLower(strings.TrimSpace(w))]; ok {
			return true
		}
	}
	return false
}

// SelectPartner 从候选列表中为 seeker 挑选伙伴。
// 候选列表必须已按入队时间升序排列，返回第一个兼容者，保证等得最久的人优先。
func SelectPartner(seeker Candidate, candidates []Candidate, pred Predicate) (Candidate, bool) {
	if pred == nil {
		pred = AlwaysCompatible
	}
	for _, c := range candidates {
		if c.UserUUID == seeker.UserUUID {
			continue
		}
		if pred(seeker, c) {
			return c, true
		}
	}
	return Candidate{}, false
}
