package symexpr

import "testing"

func TestBroadcastBoundaryBehaviours(t *testing.T) {
	three := ConstShape(ConstInt(3))
	oneThree := ConstShape(ConstInt(1), ConstInt(3))
	twoThree := ConstShape(ConstInt(2), ConstInt(3))
	two := ConstShape(ConstInt(2))

	if got, err := BroadcastConst(three, oneThree); err != nil {
		t.Fatalf("(3) + (1,3) should broadcast: %v", err)
	} else if !shapeEqualConst(got, oneThree) {
		t.Errorf("(3) + (1,3) = %s, want (1,3)", got)
	}

	if got, err := BroadcastConst(three, twoThree); err != nil {
		t.Fatalf("(3) + (2,3) should broadcast: %v", err)
	} else if !shapeEqualConst(got, twoThree) {
		t.Errorf("(3) + (2,3) = %s, want (2,3)", got)
	}

	if _, err := BroadcastConst(two, three); err == nil {
		t.Errorf("(2) + (3) should fail to broadcast")
	}
}
