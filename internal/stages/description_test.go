package stages

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"patentflow/internal/providers"
	"patentflow/internal/util"
	"patentflow/internal/workspace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func TestDescriptionLengthEscalation(t *testing.T) {
	model := &scriptedModel{reply: func(req providers.GenerateRequest) (string, error) {
		return strings.Repeat("短", 50), nil
	}}
	rc := newRunContext(t, model)

	require.NoError(t, WriteDescription(context.Background(), rc))

	ops := model.ops()
	require.Equal(t, len(DescriptionSections), ops[OpDescriptionSection])
	require.Equal(t, len(DescriptionSections), ops[OpSectionExpand])
	require.Equal(t, 1, ops[OpDescriptionExpand])
	require.Len(t, model.calls, 2*len(DescriptionSections)+1)

	// the non-empty whole-document expansion replaces the draft
	require.Equal(t, strings.Repeat("短", 50)+"\n", rc.Store.ReadText(workspace.Description, ""))
}

func TestDescriptionSkipsExpansionWhenLongEnough(t *testing.T) {
	model := &scriptedModel{reply: func(req providers.GenerateRequest) (string, error) {
		return strings.Repeat("实施例内容", 1000), nil
	}}
	rc := newRunContext(t, model)

	require.NoError(t, WriteDescription(context.Background(), rc))
	ops := model.ops()
	require.Equal(t, len(DescriptionSections), ops[OpDescriptionSection])
	require.Zero(t, ops[OpSectionExpand])
	require.Zero(t, ops[OpDescriptionExpand])

	desc := rc.Store.ReadText(workspace.Description, "")
	require.True(t, strings.HasPrefix(desc, "## 技术领域\n\n"))
	require.Equal(t, 1, strings.Count(desc, "## 具体实施方式"))
	require.GreaterOrEqual(t, util.CompactLen(desc), rc.Options.DescriptionMinChars)
}

func TestDescriptionKeepsDraftWhenExpansionEmpty(t *testing.T) {
	model := &scriptedModel{reply: func(req providers.GenerateRequest) (string, error) {
		if req.Operation == OpDescriptionExpand {
			return "   ", nil
		}
		return "段落", nil
	}}
	rc := newRunContext(t, model)

	require.NoError(t, WriteDescription(context.Background(), rc))
	desc := rc.Store.ReadText(workspace.Description, "")
	require.Contains(t, desc, "## 背景技术\n\n段落")
}

func TestDescriptionParallelismIsBounded(t *testing.T) {
	model := &scriptedModel{delay: 20 * time.Millisecond, reply: func(req providers.GenerateRequest) (string, error) {
		return strings.Repeat("字", 4000), nil
	}}
	rc := newRunContext(t, model)
	rc.Options.DescriptionParallelism = 3

	require.NoError(t, WriteDescription(context.Background(), rc))
	require.LessOrEqual(t, model.peak, 3)
	require.Len(t, model.calls, len(DescriptionSections))
}

func TestDescriptionSectionFailureAbortsStage(t *testing.T) {
	boom := errors.New("boom")
	model := &scriptedModel{reply: func(req providers.GenerateRequest) (string, error) {
		if strings.Contains(req.Prompt, "附图说明") {
			return "", boom
		}
		return strings.Repeat("字", 4000), nil
	}}
	rc := newRunContext(t, model)

	err := WriteDescription(context.Background(), rc)
	require.ErrorIs(t, err, boom)
	require.False(t, rc.Store.Exists(workspace.Description))
}

func TestLongSectionNeverCallsThreeTimes(t *testing.T) {
	model := &scriptedModel{reply: func(req providers.GenerateRequest) (string, error) {
		return "太短", nil
	}}
	rc := newRunContext(t, model)

	text, err := rc.LongSection(context.Background(), DescriptionSections[0], "ctx")
	require.NoError(t, err)
	require.Equal(t, "太短", text)
	require.Len(t, model.calls, 2)
	require.InDelta(t, 0.3, model.calls[1].Temperature, 1e-9)
	require.Equal(t, rc.Options.LongModelTimeout, model.calls[0].Timeout)
}
