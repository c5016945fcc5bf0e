package session

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taote/taote/internal/ring"
)

func TestNewWindowStartsOneFocusedTab(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()

	require.Len(t, w.Tabs(), 1)
	tab := w.Focused()
	require.NotNil(t, tab)
	top := topOf(w)
	assert.True(t, top.shown)
	assert.Equal(t, "Terminal", top.title)
	assert.Equal(t, 640, top.width)
	assert.Equal(t, 480, top.height)
	assert.Equal(t, "☐  1/1  ", top.label)
	assert.Equal(t, h.rt.settings.TitleColors[0].RGBA, top.bg)
	assert.Equal(t, tab.widget, top.visible)

	fw := widgetOf(tab)
	assert.Equal(t, []string{"/bin/test-sh", "-i"}, fw.spawnArgv)
	assert.Equal(t, "", fw.spawnDir)
	assert.Equal(t, DefaultScrollbackLines, fw.cfg.ScrollbackLines)
	assert.Equal(t, DefaultWordCharExceptions, fw.cfg.WordCharExceptions)
	h.checkInvariants()
}

func TestSpawnCompletionRecordsPID(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	tab := w.Focused()
	assert.Equal(t, 0, tab.PID())

	widgetOf(tab).completeSpawn(321)
	assert.Equal(t, 321, tab.PID())
}

func TestStaleSpawnCompletionIgnored(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	keep := h.newTab(w)
	tab := h.newTab(w)
	fw := widgetOf(tab)

	tab.Close()
	h.drain()
	fw.completeSpawn(99)

	assert.Equal(t, 0, tab.PID())
	assert.Equal(t, keep, w.Focused())
	h.checkInvariants()
}

func TestNewTabInheritsWorkingDirectory(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	first := w.Focused()
	widgetOf(first).completeSpawn(42)
	h.cwd[42] = "/srv/project"

	tab := h.rt.NewTab()
	tab.SetInitialWorkingDirectoryFrom(first)
	assert.Equal(t, "/srv/project", tab.InitialWorkingDirectory())
	w.AttachTab(tab, true)

	assert.Equal(t, "/srv/project", widgetOf(tab).spawnDir)
	assert.Equal(t, "", tab.InitialWorkingDirectory())
}

func TestWorkingDirectoryLookupFailure(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	first := w.Focused()

	tab := h.rt.NewTab()
	tab.SetInitialWorkingDirectoryFrom(first)
	assert.Equal(t, "", tab.InitialWorkingDirectory(), "pid not yet known")

	widgetOf(first).completeSpawn(7)
	tab.SetInitialWorkingDirectoryFrom(first)
	assert.Equal(t, "", tab.InitialWorkingDirectory(), "lookup error")

	tab.SetInitialWorkingDirectoryFrom(nil)
	assert.Equal(t, "", tab.InitialWorkingDirectory())
}

func TestAttachInsertsAfterFocused(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	c := h.rt.NewTab()

	w.Walk(ring.Prev, false)
	require.Equal(t, a, w.Focused())
	w.AttachTab(c, false)

	assert.Equal(t, []ring.ID{a.id, c.id, b.id}, ids(w.Tabs()))
	assert.Equal(t, a, w.Focused(), "inactive attach keeps focus")
	h.checkInvariants()
}

func TestToggleSelectedTwiceLeavesNoLinks(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	tab := w.Focused()

	tab.ToggleSelected()
	assert.True(t, tab.IsSelected())
	assert.Equal(t, []*Tab{tab}, h.rt.SelectedTabs())

	tab.ToggleSelected()
	assert.False(t, tab.IsSelected())
	assert.Equal(t, ring.Link{}, tab.selLink)
	assert.True(t, h.rt.selection.Empty())
	h.checkInvariants()
}

func TestClosedTabNeverSelected(t *testing.T) {
	h := newHarness(t)
	tab := h.rt.NewTab()
	tab.seq = 0
	tab.ToggleSelected()
	assert.False(t, tab.IsSelected())
}

func TestSelectionKeepsOrder(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	c := h.newTab(w)

	c.ToggleSelected()
	a.ToggleSelected()
	b.ToggleSelected()
	assert.Equal(t, []*Tab{c, a, b}, h.rt.SelectedTabs())

	a.Close()
	h.drain()
	assert.Equal(t, []*Tab{c, b}, h.rt.SelectedTabs())
	h.checkInvariants()
}

func TestWalkToOpenTab(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()

	assert.Equal(t, a, a.WalkToOpenTab(ring.Next), "single open tab walks to itself")
	assert.Equal(t, a, a.WalkToOpenTab(ring.Prev))

	b := h.newTab(w)
	c := h.newTab(w)
	assert.Equal(t, c, b.WalkToOpenTab(ring.Next))
	assert.Equal(t, a, b.WalkToOpenTab(ring.Prev))
	assert.Equal(t, b, b.WalkToOpenTab(ring.Next).WalkToOpenTab(ring.Prev))
	assert.Equal(t, b, b.WalkToOpenTab(ring.Prev).WalkToOpenTab(ring.Next))
	assert.Equal(t, a, c.WalkToOpenTab(ring.Next), "walk skips the ring head")

	b.seq = 0
	assert.Equal(t, c, a.WalkToOpenTab(ring.Next), "walk skips closed tabs")

	a.seq, c.seq = 0, 0
	assert.Nil(t, a.WalkToOpenTab(ring.Next), "all closed")
	assert.Nil(t, b.WalkToOpenTab(ring.Prev))

	loose := h.rt.NewTab()
	assert.Nil(t, loose.WalkToOpenTab(ring.Next), "detached tab")
}

func TestMostRecentlyUsedOpenTab(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	c := h.newTab(w)

	assert.Equal(t, c, w.MostRecentlyUsedOpenTab())
	w.Walk(ring.Next, false)
	assert.Equal(t, a, w.MostRecentlyUsedOpenTab())

	a.seq = 0
	assert.Equal(t, c, w.MostRecentlyUsedOpenTab())
	b.seq, c.seq = 0, 0
	assert.Nil(t, w.MostRecentlyUsedOpenTab())
}

func TestCloseRefocusesMostRecentlyUsed(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	c := h.newTab(w)

	w.Walk(ring.Prev, false) // focus b
	w.Walk(ring.Prev, false) // focus a
	require.Equal(t, a, w.Focused())
	aw := widgetOf(a)

	a.Close()
	assert.Equal(t, b, w.Focused(), "b was focused more recently than c")
	assert.Equal(t, b.widget, topOf(w).visible)
	assert.True(t, aw.destroyed)
	assert.Nil(t, a.Widget())
	assert.Equal(t, "☐  1/2  ", topOf(w).label)
	assert.NotContains(t, topOf(w).children, TerminalWidget(aw))

	h.drain()
	assert.Nil(t, h.rt.Tab(a.id), "disposed on idle")
	assert.NotNil(t, h.rt.Tab(c.id))
	h.checkInvariants()
}

func TestDetachLastTabDestroysWindowOnce(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	tab := w.Focused()

	tab.Close()
	tab.Close()

	top := topOf(w)
	assert.Equal(t, 1, top.destroyCalls)
	assert.True(t, w.Destroying())
	assert.Equal(t, 0, h.quits, "disposal waits for idle")

	h.drain()
	assert.Empty(t, h.rt.Windows())
	assert.Equal(t, 0, h.rt.TabCount())
	assert.Equal(t, 1, h.quits)
}

func TestChildExitClosesTab(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)

	widgetOf(b).onExit(0)
	assert.True(t, b.IsClosed())
	assert.Equal(t, a, w.Focused())
	h.drain()
	assert.Equal(t, []ring.ID{a.id}, ids(w.Tabs()))
	h.checkInvariants()
}

func TestWidgetNeverRecreated(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)

	widgetOf(b).Destroy()
	assert.True(t, b.IsClosed())
	assert.Equal(t, a, w.Focused())

	made := len(h.terms.made)
	b.EnsureTerminalWidget()
	assert.Nil(t, b.Widget())
	assert.True(t, b.IsClosed())

	w.AttachTab(b, true)
	assert.Equal(t, made, len(h.terms.made))
	assert.Equal(t, a, w.Focused())
	h.drain()
	h.checkInvariants()
}

func TestTerminalCreationFailure(t *testing.T) {
	h := newHarness(t)
	h.terms.fail = true
	w := h.newWindow()

	assert.Nil(t, w.Focused())
	assert.Equal(t, 1, topOf(w).destroyCalls)
	h.drain()
	assert.Empty(t, h.rt.Windows())
	assert.Equal(t, 0, h.rt.TabCount())
	assert.Equal(t, 1, h.quits)
}

func TestTerminalCreationFailureInExistingWindow(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	h.terms.fail = true

	b := h.newTab(w)
	assert.True(t, b.IsClosed())
	assert.Equal(t, a, w.Focused())
	h.drain()
	assert.Nil(t, h.rt.Tab(b.id))
	h.checkInvariants()
}

func TestAdoptSelectedTabs(t *testing.T) {
	h := newHarness(t)
	src := h.newWindow()
	a := src.Focused()
	b := h.newTab(src)
	c := h.newTab(src)
	a.ToggleSelected()
	c.ToggleSelected()

	dst := NewWindow(h.rt, 3, b)
	assert.Equal(t, []ring.ID{c.id, a.id}, ids(dst.Tabs()), "unfocused window inserts at the front")
	assert.Equal(t, c, dst.Focused(), "last adopted tab is focused")
	assert.True(t, h.rt.selection.Empty())
	assert.False(t, a.IsSelected())
	assert.Equal(t, dst, a.Window())
	assert.Contains(t, topOf(dst).children, a.widget)
	assert.NotContains(t, topOf(src).children, a.widget)
	assert.False(t, widgetOf(a).destroyed, "moving keeps the terminal")

	assert.Equal(t, []ring.ID{b.id}, ids(src.Tabs()))
	assert.Equal(t, b, src.Focused())
	assert.Equal(t, "☐  1/1  ", topOf(src).label)
	assert.Equal(t, h.rt.settings.TitleColors[3].RGBA, topOf(dst).bg)

	assert.False(t, dst.AdoptSelectedTabs(), "second adoption is a no-op")
	assert.Equal(t, []ring.ID{c.id, a.id}, ids(dst.Tabs()))
	h.checkInvariants()
}

func TestAdoptLastTabDestroysSourceWindow(t *testing.T) {
	h := newHarness(t)
	src := h.newWindow()
	a := src.Focused()
	a.ToggleSelected()

	dst := NewWindow(h.rt, 0, nil)
	assert.Equal(t, a, dst.Focused())
	assert.Equal(t, 1, topOf(src).destroyCalls)
	assert.False(t, widgetOf(a).destroyed)

	h.drain()
	assert.Equal(t, []*Window{dst}, h.rt.Windows())
	assert.Equal(t, 0, h.quits)
	h.checkInvariants()
}

func TestAdoptIntoOwnWindow(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	a.ToggleSelected()
	b.ToggleSelected()

	assert.True(t, w.AdoptSelectedTabs())
	assert.Equal(t, 0, topOf(w).destroyCalls, "guard keeps the window alive")
	assert.ElementsMatch(t, []ring.ID{a.id, b.id}, ids(w.Tabs()))
	assert.Equal(t, b, w.Focused())
	h.checkInvariants()
}

func TestTitleText(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	c := h.newTab(w)

	w.Walk(ring.Prev, false)
	require.Equal(t, b, w.Focused())
	a.seq = 0
	assert.Equal(t, "☐  1/2  ", w.TitleText())

	a.seq = h.rt.NextSeq()
	c.seq = 0
	assert.Equal(t, "☐  2/2  ", w.TitleText(), "3 tabs, 2 open, focused on the 2nd open")

	widgetOf(b).setTitle("vim main.go")
	b.ToggleSelected()
	w.UpdateTitleText()
	assert.Equal(t, "☑  2/2  vim main.go", topOf(w).label)
}

func TestTitleTextEmpty(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	w.focused.seq = 0
	w.focused = nil
	assert.Equal(t, "☐  0/0  ", w.TitleText())
}

func TestTitleChangedUpdatesLabel(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	widgetOf(w.Focused()).setTitle("htop")
	assert.Equal(t, "☐  1/1  htop", topOf(w).label)
}

func TestWalkChangesFocus(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	c := h.newTab(w)

	w.Walk(ring.Next, false)
	assert.Equal(t, a, w.Focused(), "wraps past the end")
	assert.Equal(t, a.widget, topOf(w).visible)
	assert.Equal(t, "☐  1/3  ", topOf(w).label)

	w.Walk(ring.Prev, false)
	assert.Equal(t, c, w.Focused())
	w.Walk(ring.Prev, false)
	assert.Equal(t, b, w.Focused())
	assert.Equal(t, []ring.ID{a.id, b.id, c.id}, ids(w.Tabs()), "plain walk never reorders")
}

func TestWalkSingleTabIsNoop(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	seq := a.seq
	w.Walk(ring.Next, false)
	w.Walk(ring.Next, true)
	assert.Equal(t, a, w.Focused())
	assert.Equal(t, seq, a.seq)
}

func TestNudgeMovesFocusedTab(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	c := h.newTab(w)

	w.Walk(ring.Prev, false)
	w.Walk(ring.Prev, false)
	require.Equal(t, a, w.Focused())

	w.Walk(ring.Next, true)
	assert.Equal(t, []ring.ID{b.id, a.id, c.id}, ids(w.Tabs()))
	assert.Equal(t, a, w.Focused(), "nudge keeps focus")
	assert.Equal(t, "☐  2/3  ", topOf(w).label)

	w.Walk(ring.Next, true)
	assert.Equal(t, []ring.ID{b.id, c.id, a.id}, ids(w.Tabs()))

	w.Walk(ring.Prev, true)
	assert.Equal(t, []ring.ID{b.id, a.id, c.id}, ids(w.Tabs()))
	h.checkInvariants()
}

func TestNudgeAcrossHeadPassesNeighbour(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	c := h.newTab(w)

	require.Equal(t, c, w.Focused())
	w.Walk(ring.Next, true)
	assert.Equal(t, []ring.ID{a.id, c.id, b.id}, ids(w.Tabs()), "last tab lands after the first")
	assert.Equal(t, "☐  2/3  ", topOf(w).label)

	w.Walk(ring.Prev, true)
	assert.Equal(t, []ring.ID{c.id, a.id, b.id}, ids(w.Tabs()))
	assert.Equal(t, "☐  1/3  ", topOf(w).label)

	w.Walk(ring.Prev, true)
	assert.Equal(t, []ring.ID{a.id, c.id, b.id}, ids(w.Tabs()), "first tab lands before the last")
	assert.Equal(t, c, w.Focused())
	h.checkInvariants()
}

func TestNudgeWithTwoTabs(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)

	w.Walk(ring.Next, true)
	assert.Equal(t, []ring.ID{a.id, b.id}, ids(w.Tabs()), "crossing the head leaves two tabs in place")
	assert.Equal(t, "☐  2/2  ", topOf(w).label)

	w.Walk(ring.Prev, true)
	assert.Equal(t, []ring.ID{b.id, a.id}, ids(w.Tabs()))
	assert.Equal(t, "☐  1/2  ", topOf(w).label)
	h.checkInvariants()
}

func TestNudgeSkipsClosedNeighbours(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	c := h.newTab(w)
	w.Walk(ring.Next, false)
	require.Equal(t, a, w.Focused())
	b.seq = 0

	w.Walk(ring.Next, true)
	assert.Equal(t, []ring.ID{b.id, c.id, a.id}, ids(w.Tabs()))
}

func TestUpdateTitleColorWraps(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	n := len(h.rt.settings.TitleColors)

	w.UpdateTitleColor(n - 1)
	assert.Equal(t, n-1, w.TitleColor())
	w.UpdateTitleColor(n + 1)
	assert.Equal(t, 0, w.TitleColor())
	w.UpdateTitleColor(-1)
	assert.Equal(t, n-1, w.TitleColor())
	assert.Equal(t, h.rt.settings.TitleColors[n-1].RGBA, topOf(w).bg)
}

func TestNextZoom(t *testing.T) {
	x := 1.0
	for i := 0; i < 100; i++ {
		x = NextZoom(x, 1)
		require.LessOrEqual(t, x, ZoomMax)
	}
	assert.Equal(t, ZoomMax, x)

	for i := 0; i < 100; i++ {
		x = NextZoom(x, -1)
		require.GreaterOrEqual(t, x, ZoomMin)
	}
	assert.Equal(t, ZoomMin, x)

	assert.Equal(t, 1.0, NextZoom(1.125, -1))
	assert.Equal(t, 1.0, NextZoom(0.95, 1), "snaps inside (0.9, 1.1)")
	assert.Equal(t, 1.125, NextZoom(1, 1))
	assert.InDelta(t, 1/1.125, NextZoom(1, -1), 1e-12)
}

func TestNextZoomReturnsToExactlyOne(t *testing.T) {
	x, steps := ZoomMin, 0
	for ; x < 1 && steps < 100; steps++ {
		x = NextZoom(x, 1)
	}
	assert.Equal(t, 1.0, x, "zooming in from the minimum")
	assert.Equal(t, ZoomMin, zoomSteps(1.0, -1, steps+10))

	x, steps = ZoomMax, 0
	for ; x > 1 && steps < 100; steps++ {
		x = NextZoom(x, -1)
	}
	assert.Equal(t, 1.0, x, "zooming out from the maximum")
	assert.Equal(t, ZoomMax, zoomSteps(1.0, 1, steps+10))
}

func zoomSteps(x float64, sign, n int) float64 {
	for range n {
		x = NextZoom(x, sign)
	}
	return x
}

func TestZoomOnTab(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	tab := w.Focused()
	fw := widgetOf(tab)

	tab.ZoomMore(1)
	tab.ZoomMore(1)
	assert.InDelta(t, 1.125*1.125, fw.scale, 1e-12)
	tab.ZoomReset()
	assert.Equal(t, 1.0, fw.scale)

	loose := h.rt.NewTab()
	loose.ZoomMore(1)
	loose.ZoomReset()
}

func TestClipboardDelegates(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	tab := w.Focused()
	tab.ClipboardCopy()
	tab.ClipboardPaste()
	assert.Equal(t, 1, widgetOf(tab).copies)
	assert.Equal(t, 1, widgetOf(tab).pastes)
}

func TestApplySettings(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	fw := widgetOf(w.Focused())

	s := h.rt.Settings()
	s.Terminal.ScrollbackLines = 100
	s.TitleColors = []TitleColor{{Name: "Only", RGBA: s.TitleColors[5].RGBA}}
	w.UpdateTitleColor(2)
	h.rt.ApplySettings(s)

	assert.Equal(t, 100, fw.cfg.ScrollbackLines)
	assert.Equal(t, 0, w.TitleColor())
	assert.Equal(t, s.TitleColors[0].RGBA, topOf(w).bg)
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	widgetOf(a).completeSpawn(11)
	b := h.newTab(w)
	widgetOf(b).setTitle("make")
	a.ToggleSelected()

	s := h.rt.Snapshot()
	require.Len(t, s.Windows, 1)
	wi := s.Windows[0]
	assert.Equal(t, w.ID(), wi.ID)
	assert.Equal(t, "Dark Gray", wi.ColorName)
	require.Len(t, wi.Tabs, 2)
	assert.Equal(t, 11, wi.Tabs[0].PID)
	assert.True(t, wi.Tabs[0].Selected)
	assert.True(t, wi.Tabs[1].Focused)
	assert.Equal(t, "make", wi.Tabs[1].Title)
	assert.Equal(t, []uint64{uint64(a.id)}, s.Selected)

	back := SnapshotFromRows(s.Rows(), s.TakenAt)
	assert.Equal(t, s.Selected, back.Selected)
	assert.Equal(t, wi.Tabs[1].Title, back.Windows[0].Tabs[1].Title)
}

func TestRuntimeWindowLookup(t *testing.T) {
	h := newHarness(t)
	w1 := h.newWindow()
	w2 := h.newWindow()

	got, err := h.rt.Window(0)
	require.NoError(t, err)
	assert.Equal(t, w2, got)
	got, err = h.rt.Window(w1.ID())
	require.NoError(t, err)
	assert.Equal(t, w1, got)
	_, err = h.rt.Window(99)
	assert.ErrorIs(t, err, ErrNoWindow)
}

func TestTeardownDestroysRemainingTabs(t *testing.T) {
	h := newHarness(t)
	w := h.newWindow()
	a := w.Focused()
	b := h.newTab(w)
	b.ToggleSelected()
	aw, bw := widgetOf(a), widgetOf(b)

	topOf(w).Destroy()
	assert.True(t, aw.destroyed)
	assert.True(t, bw.destroyed)
	assert.True(t, h.rt.selection.Empty())
	h.drain()
	assert.Equal(t, 0, h.rt.TabCount())
	assert.Equal(t, 1, h.quits)
}

// TestRandomOperationsKeepInvariants drives random topology operations and
// checks the ownership and link invariants after each step.
func TestRandomOperationsKeepInvariants(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(7))
	h.newWindow()

	for step := 0; step < 2000; step++ {
		wins := h.rt.Windows()
		var live []*Window
		for _, w := range wins {
			if !w.Destroying() {
				live = append(live, w)
			}
		}
		if len(live) == 0 {
			h.newWindow()
			continue
		}
		w := live[rng.Intn(len(live))]
		f := w.Focused()
		switch op := rng.Intn(9); op {
		case 0:
			h.newTab(w)
		case 1:
			if f != nil {
				f.Close()
			}
		case 2:
			if f != nil {
				f.ToggleSelected()
			}
		case 3:
			w.AdoptSelectedTabs()
		case 4:
			NewWindow(h.rt, w.TitleColor(), f)
		case 5:
			w.Walk(ring.Direction(rng.Intn(2)), rng.Intn(2) == 0)
		case 6:
			if fw := widgetOf(f); fw != nil {
				fw.onExit(1)
			}
		case 7:
			if fw := widgetOf(f); fw != nil && rng.Intn(4) == 0 {
				fw.Destroy()
			}
		case 8:
			if len(live) > 1 && rng.Intn(8) == 0 {
				topOf(w).Destroy()
			}
		}
		h.checkInvariants()
		if rng.Intn(3) == 0 {
			h.drain()
			h.checkInvariants()
		}
	}
}

func TestShutdownDestroysEveryWindow(t *testing.T) {
	h := newHarness(t)
	w1 := h.newWindow()
	w2 := h.newWindow()
	h.newTab(w2)
	var widgets []*fakeWidget
	for _, w := range []*Window{w1, w2} {
		for _, tab := range w.Tabs() {
			widgets = append(widgets, widgetOf(tab))
		}
	}

	h.rt.Shutdown()
	h.drain()
	for _, fw := range widgets {
		assert.True(t, fw.destroyed)
	}
	assert.Empty(t, h.rt.Windows())
	assert.Equal(t, 1, h.quits)

	h.rt.Shutdown()
	assert.Equal(t, 1, h.quits)
}
