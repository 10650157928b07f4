package reply

import (
	"strconv"
	"strings"
)

const ClassifyPrompt = `你是一个意图分类专家，需要判断用户消息的意图类型。
请根据用户消息内容，返回以下意图之一：
- price: 价格相关（议价、优惠、降价等）
- tech: 技术相关（产品参数、使用方法、故障等）
- default: 其他一般咨询

只返回意图类型，不要其他内容。`

const PricePrompt = `你是一位经验丰富的销售专家，擅长议价。
语言要求：简短直接，每句≤10字，总字数≤40字。
议价策略：
1. 根据议价次数递减优惠：第1次小幅优惠，第2次中等优惠，第3次最大优惠
2. 接近最大议价轮数时要坚持底线，强调商品价值
3. 优惠不能超过设定的最大百分比和金额
4. 语气要友好但坚定，突出商品优势
注意：结合商品信息、对话历史和议价设置，给出合适的回复。`

const TechPrompt = `你是一位技术专家，专业解答产品相关问题。
语言要求：简短专业，每句≤10字，总字数≤40字。
回答重点：产品功能、使用方法、注意事项。
注意：基于商品信息回答，避免过度承诺。`

const DefaultPrompt = `你是一位资深电商卖家，提供优质客服。
语言要求：简短友好，每句≤10字，总字数≤40字。
回答重点：商品介绍、物流、售后等常见问题。
注意：结合商品信息，给出实用建议。`

// RefusalReply is sent instead of a model reply once the bargain cap is reached.
const RefusalReply = "抱歉，这个价格已经是最优惠的了，不能再便宜了哦！"

const historyWindow = 10

// Prompts holds the built-in templates. Account custom prompts take precedence.
type Prompts struct {
	Classify string `toml:"classify"`
	Price    string `toml:"price"`
	Tech     string `toml:"tech"`
	Default  string `toml:"default"`
}

func DefaultPrompts() Prompts {
	return Prompts{
		Classify: ClassifyPrompt,
		Price:    PricePrompt,
		Tech:     TechPrompt,
		Default:  DefaultPrompt,
	}
}

// Merge returns p with every non-empty field of o applied on top.
func (p Prompts) Merge(o Prompts) Prompts {
	if strings.TrimSpace(o.Classify) != "" {
		p.Classify = o.Classify
	}
	if strings.TrimSpace(o.Price) != "" {
		p.Price = o.Price
	}
	if strings.TrimSpace(o.Tech) != "" {
		p.Tech = o.Tech
	}
	if strings.TrimSpace(o.Default) != "" {
		p.Default = o.Default
	}
	return p
}

func (p Prompts) classifier(custom map[string]string) string {
	if t, ok := custom["classify"]; ok && t != "" {
		return t
	}
	return p.Classify
}

// System returns the generation system prompt for an intent.
func (p Prompts) System(intent Intent, custom map[string]string) string {
	if t, ok := custom[string(intent)]; ok && t != "" {
		return t
	}
	switch intent {
	case IntentPrice:
		return p.Price
	case IntentTech:
		return p.Tech
	default:
		return p.Default
	}
}

type Negotiation struct {
	Rounds             int
	MaxRounds          int
	MaxDiscountPercent float64
	MaxDiscountAmount  float64
}

// BuildUserPrompt renders item, recent history, bargain settings and the
// buyer message into the generation user prompt.
func BuildUserPrompt(item ItemInfo, history []Turn, n Negotiation, message string) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		lines = append(lines, string(t.Role)+": "+t.Content)
	}

	var b strings.Builder
	b.WriteString("商品信息：\n")
	b.WriteString("商品标题: " + orDefault(item.Title, "未知") + "\n")
	b.WriteString("商品价格: " + orDefault(string(item.Price), "未知") + "元\n")
	b.WriteString("商品描述: " + orDefault(item.Desc, "无") + "\n\n")

	b.WriteString("对话历史：\n")
	b.WriteString(strings.Join(lines, "\n") + "\n\n")

	b.WriteString("议价设置：\n")
	b.WriteString("- 当前议价次数：" + strconv.Itoa(n.Rounds) + "\n")
	b.WriteString("- 最大议价轮数：" + strconv.Itoa(n.MaxRounds) + "\n")
	b.WriteString("- 最大优惠百分比：" + formatNumber(n.MaxDiscountPercent) + "%\n")
	b.WriteString("- 最大优惠金额：" + formatNumber(n.MaxDiscountAmount) + "元\n\n")

	b.WriteString("用户消息：" + message + "\n\n")
	b.WriteString("请根据以上信息生成回复：")
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
