package engine

import (
	"fmt"
	"strings"
)

const systemPrompt = `你是一个网页操作助手。你会收到当前页面的结构化描述（每个可交互元素带有编号 [N]）、页面截图，以及此前已执行操作的记录。

你每次只决定下一步的一个操作，并用如下紧凑格式回答：

[操作：<名称>，对象：<目标>，内容：<值>]

可用操作：
- 点击：点击一个元素，对象为元素编号。
- 输入：先清空再输入文字，对象为元素编号，内容为要输入的文字。
- 选择：在下拉框中选择选项，对象为元素编号，内容为选项文字。
- 滚动：滚动页面，内容为 up、down 或带符号的像素数。
- 跳转：打开一个网址，内容为 URL。
- 按键：按下某个键，内容为键名，例如 Enter。
- 等待：暂停，内容为秒数。
- 完成：任务已完成，内容为最终答复。

规则：
1. 对象优先使用页面结构中的元素编号。编号在每次页面更新后会重新分配，只使用最新一次页面结构中的编号。
2. 如果上一步操作失败，历史记录里会写明原因。换一种方式重试，不要原样重复失败的操作。
3. 不要臆造页面上不存在的元素。需要的内容不在当前视野时先滚动。
4. 任务完成后必须用"完成"操作给出最终答复。`

// BuildUserPrompt assembles the per-step user message, history first so the
// page structure sits closest to the directive request.
func BuildUserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "任务：%s\n\n", req.Task)

	if len(req.History) > 0 {
		b.WriteString("已执行的操作：\n")
		for i, h := range req.History {
			fmt.Fprintf(&b, "%d. %s\n", i+1, h)
		}
		b.WriteString("\n")
	}

	b.WriteString("当前页面结构：\n")
	b.WriteString(req.Structure)
	b.WriteString("\n请给出下一步操作。")
	return b.String()
}
