package task

// applyManagement runs under b.lock, immediately after a Fn returns
// (or task_complete forces a decision), and implements the management
// outcome table.
func (b *Board) applyManagement(t *Task, retval int64, exit Exit) {
	t.retval = retval
	m := exit.Management

	switch {
	case m.Has(TriggerAgain):
		t.state = StateReady
		t.nparents = t.rparents
		b.active.push(t, t.priority)
		b.sem.Up()
		b.notifyChildren(t, TriggerAgain, exit.Merge, exit.ExitArgs)

	case m.Has(TriggerStop):
		t.state = StateStopped
		b.waiting.pushBack(t)
		b.notifyChildren(t, TriggerStop, exit.Merge, exit.ExitArgs)

	case m.Has(TriggerPeriodic):
		t.state = StatePeriodic
		b.periodic.insert(t, t.period)
		b.notifyChildren(t, TriggerPeriodic, exit.Merge, exit.ExitArgs)

	case m.Has(TriggerErrorThrow) || m.Has(TriggerErrorCatch):
		t.state = StateError
		b.color++
		t.color = b.color
		t.notifiedEpoch = b.color
		b.propagateError(t, m, exit.Merge, exit.ExitArgs)
		b.color++

	default:
		t.state = StateCompleted
		b.notifyChildren(t, m, exit.Merge, exit.ExitArgs)
	}

	if m&t.releases != 0 {
		t.sem.Up()
	}
}

// notifyChildren applies the common parent->child edge effect to every
// outgoing edge of parent whose trigger bits intersect firedBits.
func (b *Board) notifyChildren(parent *Task, firedBits Trigger, merge MergeFn, exitArgs Args) {
	for i := 0; i < parent.nchildren; i++ {
		edge := &parent.children[i]
		if !edge.valid || edge.triggers&firedBits == 0 {
			continue
		}
		b.propagateToChild(parent, edge, exitArgs, merge)
	}
}

// propagateToChild decrements the child's outstanding hard-parent
// count (or removes the edge if temporary), merges args, and
// reschedules the child if it is a flow edge or its dependencies are
// now fully satisfied.
func (b *Board) propagateToChild(parent *Task, edge *childEdge, exitArgs Args, merge MergeFn) {
	child := edge.child
	if merge != nil {
		child.args = merge(exitArgs, child.args)
	}

	satisfied := !edge.isDependency
	if edge.isDependency {
		if edge.isTemporary {
			if child.rparents > 0 {
				child.rparents--
			}
			child.parentTypes >>= 1
		} else if child.nparents > 0 {
			child.nparents--
		}
		satisfied = child.nparents == 0
	}
	if edge.isTemporary {
		edge.valid = false
	}

	if !edge.isDependency || satisfied {
		b.rescheduleChild(child)
	}
}

// rescheduleChild moves child into the arrangement its scheduleType
// names, the way a freshly-satisfied task re-enters the graph.
func (b *Board) rescheduleChild(child *Task) {
	if !child.valid || child.state == StateRunning {
		return
	}
	switch child.scheduleType {
	case ScheduleStopped:
		child.state = StateStopped
		b.waiting.pushBack(child)
	case SchedulePeriodic:
		child.state = StatePeriodic
		b.periodic.insert(child, child.period)
	default:
		child.state = StateReady
		child.nparents = child.rparents
		b.active.push(child, child.priority)
		b.sem.Up()
	}
}

// propagateError walks ERROR_THROW edges depth-first, recursing into
// each thrown-to child, and notifies ERROR_CATCH edges without
// recursing. t.color/t.notifiedEpoch must already be set to b.color by
// the caller before the first call.
func (b *Board) propagateError(t *Task, management Trigger, merge MergeFn, exitArgs Args) {
	for i := 0; i < t.nchildren; i++ {
		edge := &t.children[i]
		if !edge.valid {
			continue
		}
		hitsThrow := edge.triggers&TriggerErrorThrow != 0 && management&TriggerErrorThrow != 0
		hitsCatch := edge.triggers&TriggerErrorCatch != 0 && management&TriggerErrorCatch != 0
		if !hitsThrow && !hitsCatch {
			continue
		}
		child := edge.child
		if child.notifiedEpoch == b.color {
			continue // decision 1: a second arrival at the same frontier this epoch is a no-op
		}
		child.notifiedEpoch = b.color
		b.propagateToChild(t, edge, exitArgs, merge)

		if hitsThrow {
			if child.color == b.color {
				continue // already fully expanded this epoch, cycle-break
			}
			child.color = b.color
			child.state = StateError
			b.propagateError(child, management, merge, exitArgs)
		}
	}
}
