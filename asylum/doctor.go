package asylum

import "strings"

// DoctorCard 医生角色卡
type DoctorCard struct {
	Key       string
	Name      string
	Tags      []string
	Endurance int
	Primary   string
	Secondary string
}

var DefaultDoctorCards = []DoctorCard{
	{Key: "heal", Name: "治疗专家", Primary: "可额外治疗一次"},
	{Key: "speed", Name: "急救员", Primary: "移速+2", Tags: []string{"speed+2"}},
	{Key: "shield", Name: "防护者", Primary: "免疫一次障碍牌", Tags: []string{"shield"}},
}

func FindDoctorCard(cards []DoctorCard, key string) (DoctorCard, bool) {
	for _, c := range cards {
		if c.Key == key {
			return c, true
		}
	}
	return DoctorCard{}, false
}

func (c *DoctorCard) hasEffect(keys ...string) bool {
	if c == nil {
		return false
	}
	fields := append([]string{c.Key, c.Primary, c.Secondary}, c.Tags...)
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		for _, k := range keys {
			if f == k {
				return true
			}
		}
	}
	return false
}

// SpeedBonus 是否移速+2
func (c *DoctorCard) SpeedBonus() bool { return c.hasEffect("speed", "speed+2", "移速+2") }

// Shield 是否免疫一次障碍牌
func (c *DoctorCard) Shield() bool { return c.hasEffect("shield", "免疫一次障碍牌") }
