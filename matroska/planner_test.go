package matroska

import (
	"testing"

	"github.com/mutwol/tagparser/notice"
)

func TestPlanSegmentWithNoClustersForcesRewrite(t *testing.T) {
	in := &segmentInputs{
		SegmentInfo:    &SegmentInfoMaker{Info: &SegmentInfo{TimecodeScale: 1000000}},
		IsFirstSegment: true,
		IsLastSegment:  true,
	}
	plan, err := PlanSegment(in, Policy{}, notice.New())
	if err != nil {
		t.Fatal(err)
	}
	if !plan.RewriteRequired {
		t.Fatal("a segment with no clusters must always require a rewrite")
	}
	if plan.TotalSize == 0 {
		t.Fatal("plan TotalSize must account for at least the SegmentInfo")
	}
}

func TestPlanSegmentSizeDenotationLengthInRange(t *testing.T) {
	in := &segmentInputs{
		SegmentInfo:    &SegmentInfoMaker{Info: &SegmentInfo{TimecodeScale: 1000000, Title: "a title"}},
		IsFirstSegment: true,
		IsLastSegment:  true,
	}
	plan, err := PlanSegment(in, Policy{}, notice.New())
	if err != nil {
		t.Fatal(err)
	}
	if plan.SizeDenotationLength < 1 || plan.SizeDenotationLength > 8 {
		t.Fatalf("SizeDenotationLength = %d, out of range", plan.SizeDenotationLength)
	}
}

func TestPlanSegmentPreferredPaddingAppliedOnRewrite(t *testing.T) {
	in := &segmentInputs{
		SegmentInfo:    &SegmentInfoMaker{Info: &SegmentInfo{TimecodeScale: 1000000}},
		IsFirstSegment: true,
		IsLastSegment:  true,
	}
	policy := Policy{ForceRewrite: true, PreferredPadding: 256, MinPadding: 0, MaxPadding: 0}
	plan, err := PlanSegment(in, policy, notice.New())
	if err != nil {
		t.Fatal(err)
	}
	if plan.NewPadding != 256 {
		t.Fatalf("NewPadding = %d, want 256 (PreferredPadding) for a first segment with no clusters", plan.NewPadding)
	}
}
