package card

const (
	CardInvalid Card = 0
	CardRear    Card = 0xFF
)

// 探索牌
const (
	CardDoor     Card = iota + 0x01 // 大门
	CardSecret                      // 暗道
	CardVault                       // 密室
	CardWall                        // 墙体
	CardCorpse                      // 尸体
	CardAccident                    // 意外
)

// 道具牌
const (
	CardItemMedicine Card = iota + 0x11 // 道具：药品
	CardItemTool                        // 道具：工具
)

// 意外牌
const (
	CardEventSudden  Card = iota + 0x21 // 意外：突发状况
	CardEventWeather                    // 意外：天气变化
)

// 障碍牌
const (
	CardObstacleVirus    Card = iota + 0x31 // 障碍：病毒
	CardObstacleLockdown                    // 障碍：封锁
)

// 重症牌
const (
	CardCriticalWorsen Card = iota + 0x41 // 重症：病情加重
	CardCriticalRescue                    // 重症：紧急救治
)

type faceInfo struct {
	key  string
	text string
}

var faces = map[Card]faceInfo{
	CardDoor:     {"door", "大门"},
	CardSecret:   {"secret", "暗道"},
	CardVault:    {"vault", "密室"},
	CardWall:     {"wall", "墙体"},
	CardCorpse:   {"corpse", "尸体"},
	CardAccident: {"accident", "意外"},

	CardItemMedicine: {"item_medicine", "道具：药品"},
	CardItemTool:     {"item_tool", "道具：工具"},

	CardEventSudden:  {"event_sudden", "意外：突发状况"},
	CardEventWeather: {"event_weather", "意外：天气变化"},

	CardObstacleVirus:    {"obstacle_virus", "障碍：病毒"},
	CardObstacleLockdown: {"obstacle_lockdown", "障碍：封锁"},

	CardCriticalWorsen: {"critical_worsen", "重症：病情加重"},
	CardCriticalRescue: {"critical_rescue", "重症：紧急救治"},
}

// ExplorationWeights 探索牌库初始构成（1大门，2暗道，1密室，15墙体，2尸体，5意外）
var ExplorationWeights = []Weight{
	{Card: CardDoor, Count: 1},
	{Card: CardSecret, Count: 2},
	{Card: CardVault, Count: 1},
	{Card: CardWall, Count: 15},
	{Card: CardCorpse, Count: 2},
	{Card: CardAccident, Count: 5},
}

var auxiliaryPools = map[Deck]CardList{
	DeckItem:     {CardItemMedicine, CardItemTool},
	DeckEvent:    {CardEventSudden, CardEventWeather},
	DeckObstacle: {CardObstacleVirus, CardObstacleLockdown},
	DeckCritical: {CardCriticalWorsen, CardCriticalRescue},
}

// Pool returns a copy of an auxiliary deck's fixed pool; nil for the exploration deck.
func Pool(d Deck) CardList {
	pool, ok := auxiliaryPools[d]
	if !ok {
		return nil
	}
	var out CardList
	out.Init(pool)
	return out
}
