package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariable_Qualifiers_ValueSemantics(t *testing.T) {
	base := NewVariable("obj-timer")
	qualified := base.WithFrame(30).WithObject(1)

	_, hasFrame := base.Frame()
	assert.False(t, hasFrame, "qualifying a copy leaves the original untouched")

	f, hasFrame := qualified.Frame()
	assert.True(t, hasFrame)
	assert.Equal(t, int64(30), f)
	slot, hasObject := qualified.Object()
	assert.True(t, hasObject)
	assert.Equal(t, 1, slot)
}

func TestVariable_WithoutQualifier_RemovesIt(t *testing.T) {
	v := NewVariable("clock").WithFrame(5).WithObject(2)

	v = v.WithoutObject()
	_, hasObject := v.Object()
	assert.False(t, hasObject)

	_, hasFrame := v.Frame()
	assert.True(t, hasFrame, "removing one qualifier keeps the others")
}

func TestVariable_Equality(t *testing.T) {
	a := NewVariable("counter").WithFrame(3)
	b := NewVariable("counter").WithFrame(3)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, a.WithFrame(4))
	assert.NotEqual(t, a, a.WithObject(0), "an explicit slot-0 qualifier is not the same as no qualifier")
	assert.NotEqual(t, a, NewVariable("drift").WithFrame(3))
}

func TestVariable_WithoutRestoresEquality(t *testing.T) {
	a := NewVariable("counter").WithFrame(3)
	roundTrip := a.WithObject(7).WithoutObject()
	assert.Equal(t, a, roundTrip)
}

func TestVariable_UsableAsMapKey(t *testing.T) {
	edits := map[Variable]int64{
		NewVariable("counter").WithFrame(3): 30,
		NewVariable("counter").WithFrame(4): 40,
	}
	assert.Equal(t, int64(30), edits[NewVariable("counter").WithFrame(3)])
	_, ok := edits[NewVariable("counter").WithFrame(5)]
	assert.False(t, ok)
}

func TestVariable_BehaviorQualifier(t *testing.T) {
	bhv := ObjectBehavior{Addr: bhvCrawlerAddr}
	v := NewVariable("obj-timer").WithObject(0).WithObjectBehavior(bhv)

	got, ok := v.Behavior()
	assert.True(t, ok)
	assert.Equal(t, bhv, got)

	_, ok = v.WithoutObjectBehavior().Behavior()
	assert.False(t, ok)
}

func TestVariable_String_ListsQualifiers(t *testing.T) {
	v := NewVariable("obj-timer").WithFrame(12).WithObject(1)
	assert.Equal(t, "obj-timer@12 obj[1]", v.String())
	assert.Equal(t, "obj-timer", NewVariable("obj-timer").String())
}
