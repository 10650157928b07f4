package reply

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptsSystem(t *testing.T) {
	p := DefaultPrompts()

	assert.Equal(t, PricePrompt, p.System(IntentPrice, nil))
	assert.Equal(t, TechPrompt, p.System(IntentTech, nil))
	assert.Equal(t, DefaultPrompt, p.System(IntentDefault, nil))

	custom := map[string]string{"price": "haggle hard", "tech": ""}
	assert.Equal(t, "haggle hard", p.System(IntentPrice, custom))
	assert.Equal(t, TechPrompt, p.System(IntentTech, custom))
}

func TestPromptsMerge(t *testing.T) {
	p := DefaultPrompts().Merge(Prompts{Tech: "tech override", Price: "  "})
	assert.Equal(t, "tech override", p.Tech)
	assert.Equal(t, PricePrompt, p.Price)
	assert.Equal(t, ClassifyPrompt, p.Classify)
}

func TestBuildUserPrompt(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Content: "在吗"},
		{Role: RoleAssistant, Content: "在的"},
	}
	got := BuildUserPrompt(
		ItemInfo{Title: "二手相机", Price: "1200"},
		history,
		Negotiation{Rounds: 1, MaxRounds: 3, MaxDiscountPercent: 10, MaxDiscountAmount: 100.5},
		"能便宜点吗",
	)

	want := "商品信息：\n" +
		"商品标题: 二手相机\n" +
		"商品价格: 1200元\n" +
		"商品描述: 无\n\n" +
		"对话历史：\n" +
		"user: 在吗\nassistant: 在的\n\n" +
		"议价设置：\n" +
		"- 当前议价次数：1\n" +
		"- 最大议价轮数：3\n" +
		"- 最大优惠百分比：10%\n" +
		"- 最大优惠金额：100.5元\n\n" +
		"用户消息：能便宜点吗\n\n" +
		"请根据以上信息生成回复："
	assert.Equal(t, want, got)
}

func TestBuildUserPromptPlaceholdersAndWindow(t *testing.T) {
	var history []Turn
	for i := 0; i < 15; i++ {
		history = append(history, Turn{Role: RoleUser, Content: fmt.Sprintf("m%02d", i)})
	}

	got := BuildUserPrompt(ItemInfo{}, history, Negotiation{}, "hi")

	assert.Contains(t, got, "商品标题: 未知\n")
	assert.Contains(t, got, "商品价格: 未知元\n")
	assert.NotContains(t, got, "user: m04")
	assert.Contains(t, got, "user: m05\n")
	assert.Contains(t, got, "user: m14\n")
	assert.Equal(t, 10, strings.Count(got, "user: m"))
	assert.Less(t, strings.Index(got, "m05"), strings.Index(got, "m14"))
}
