package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompactClick(t *testing.T) {
	spec, err := ParseCompact("[操作：点击，对象：3]")
	require.NoError(t, err)
	assert.Equal(t, "click", spec.Name)
	require.NotNil(t, spec.Target.Index)
	assert.Equal(t, 3, *spec.Target.Index)
	assert.Empty(t, spec.Value)
}

func TestParseCompactInputWithValue(t *testing.T) {
	spec, err := ParseCompact("[操作：输入，对象：5，内容：夏季连衣裙]")
	require.NoError(t, err)
	assert.Equal(t, "input", spec.Name)
	require.NotNil(t, spec.Target.Index)
	assert.Equal(t, 5, *spec.Target.Index)
	assert.Equal(t, "夏季连衣裙", spec.Value)
}

func TestParseCompactValueMayContainSeparators(t *testing.T) {
	spec, err := ParseCompact("[操作：输入，对象：0，内容：你好，世界，再见]")
	require.NoError(t, err)
	assert.Equal(t, "你好，世界，再见", spec.Value)
}

func TestParseCompactASCIIPunctuation(t *testing.T) {
	spec, err := ParseCompact("[action: click, target: 7]")
	require.NoError(t, err)
	assert.Equal(t, "click", spec.Name)
	require.NotNil(t, spec.Target.Index)
	assert.Equal(t, 7, *spec.Target.Index)
}

func TestParseCompactSurroundingProse(t *testing.T) {
	spec, err := ParseCompact("我将点击登录按钮。[操作：点击，对象：2] 然后等待页面加载。")
	require.NoError(t, err)
	assert.Equal(t, "click", spec.Name)
}

func TestParseCompactDone(t *testing.T) {
	spec, err := ParseCompact("[操作：完成，内容：已加入购物车]")
	require.NoError(t, err)
	assert.Equal(t, "done", spec.Name)
	assert.Equal(t, "已加入购物车", spec.Value)
}

func TestParseCompactTargetModes(t *testing.T) {
	spec, err := ParseCompact("[操作：点击，对象：/html/body/div[2]/button]")
	require.NoError(t, err)
	assert.Equal(t, "/html/body/div[2]/button", spec.Target.XPath)

	spec, err = ParseCompact("先点开菜单。[操作：点击，对象：//ul[@id='nav']/li[3]/a] 然后继续。")
	require.NoError(t, err)
	assert.Equal(t, "//ul[@id='nav']/li[3]/a", spec.Target.XPath)

	spec, err = ParseCompact("[操作：点击，对象：css=.submit-btn]")
	require.NoError(t, err)
	assert.Equal(t, ".submit-btn", spec.Target.Selector)

	spec, err = ParseCompact("[操作：点击，对象：立即购买]")
	require.NoError(t, err)
	assert.Equal(t, "立即购买", spec.Target.Text)
}

func TestParseCompactErrors(t *testing.T) {
	for _, input := range []string{
		"no directive here",
		"[对象：3]",
		"[操作：飞行，对象：3]",
		"[操作：点击，对象：3",
	} {
		_, err := ParseCompact(input)
		assert.ErrorIs(t, err, ErrValidation, "input %q", input)
	}
}

func TestRegistryValidate(t *testing.T) {
	r := NewRegistry()
	idx := 0

	assert.NoError(t, r.Validate(Spec{Name: "click", Target: Target{Index: &idx}}))
	assert.NoError(t, r.Validate(Spec{Name: "scroll", Value: "down"}))
	assert.NoError(t, r.Validate(Spec{Name: "done"}))

	assert.ErrorIs(t, r.Validate(Spec{Name: "click"}), ErrValidation)
	assert.ErrorIs(t, r.Validate(Spec{Name: "input", Target: Target{Index: &idx}}), ErrValidation)
	assert.ErrorIs(t, r.Validate(Spec{Name: "teleport"}), ErrValidation)
}
