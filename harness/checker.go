// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"

	"github.com/NVIDIA/rbfuzz/adapter"
	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/logger"
	"github.com/NVIDIA/rbfuzz/oracle"
)

func violation(kind blunder.ViolationKind, expected interface{}, observed interface{}, format string, args ...interface{}) error {
	return blunder.WithExpectedObserved(blunder.NewError(kind, format, args...), expected, observed)
}

// treeError classifies an error the tree returned on its own.
func treeError(err error) error {
	if blunder.Is(err, blunder.UnclassifiedError) {
		return blunder.AddKind(err, blunder.StructuralViolation)
	}
	return err
}

func statusString(status oracle.Status, key int64) string {
	if oracle.Found == status {
		return fmt.Sprintf("%v %d", status, key)
	}
	return status.String()
}

func entriesOf(nodes []adapter.Node) (entries []oracle.Entry) {
	entries = make([]oracle.Entry, 0, len(nodes))
	for _, node := range nodes {
		entries = append(entries, oracle.Entry{Key: node.Key(), Info: node.Info()})
	}
	return
}

// Apply performs action on both models with its per-action checks and
// returns a short rendering of what was observed.
func (run *Run) Apply(action Action) (observation string, err error) {
	run.result.Actions[action.Kind]++

	switch action.Kind {
	case Insert:
		observation, err = run.insert(action)
	case Delete:
		observation, err = run.delete(action)
	case Find:
		observation, err = run.find(action)
	case Predecessor, Successor:
		observation, err = run.neighbor(action)
	case RangeEnumerate:
		observation, err = run.rangeEnumerate(action)
	case StructuralCheck:
		err = run.checkRep()
		if nil == err {
			err = run.Verify()
		}
		observation = "ok"
	case RandomTeardown:
		observation, err = run.teardown()
	default:
		err = blunder.NewError(blunder.PreconditionViolation, "unknown action %v", action.Kind)
	}

	logger.Tracef("%d: %v %s", run.round, action, observation)

	if nil != err {
		err = blunder.WithAction(err, action.String())
	}
	return
}

func (run *Run) insert(action Action) (observation string, err error) {
	if run.config.NoDuplicates && run.oracle.Find(action.Key) {
		observation = "AVOIDING DUPLICATE INSERT"
		return
	}

	err = run.tree.Insert(action.Key, action.Info)
	if nil != err {
		err = treeError(err)
		return
	}
	run.oracle.Insert(action.Key, action.Info)

	observation = fmt.Sprintf("size %d", run.oracle.Len())
	return
}

// removeFromOracle mirrors the removal of (key, info) from the tree.
func (run *Run) removeFromOracle(key int64, info oracle.Token) (err error) {
	if run.config.TrackDuplicateInfo {
		if !run.oracle.DeleteEntry(key, info) {
			err = violation(blunder.EquivalenceViolation, "an entry with that info", oracle.Entry{Key: key, Info: info},
				"tree removed %v which the oracle does not hold", oracle.Entry{Key: key, Info: info})
		}
		return
	}
	if !run.oracle.Delete(key) {
		err = violation(blunder.EquivalenceViolation, "absent", "present", "tree removed key %d which the oracle does not hold", key)
	}
	return
}

// exactQuery looks key up in the tree and checks the answer against the oracle.
func (run *Run) exactQuery(key int64) (node adapter.Node, found bool, err error) {
	node, found, err = run.tree.ExactQuery(key)
	if nil != err {
		err = treeError(err)
		return
	}

	present := run.oracle.Find(key)

	switch {
	case found && (node.Key() != key):
		err = violation(blunder.EquivalenceViolation, key, node.Key(), "exact query for %d returned key %d", key, node.Key())
	case found && !present:
		err = violation(blunder.EquivalenceViolation, "absent", "present", "expected not to find %d", key)
	case !found && present:
		err = violation(blunder.EquivalenceViolation, "present", "absent", "expected to find %d", key)
	}
	return
}

func (run *Run) delete(action Action) (observation string, err error) {
	node, found, err := run.exactQuery(action.Key)
	if nil != err {
		return
	}
	if !found {
		observation = "absent"
		return
	}

	entry := oracle.Entry{Key: node.Key(), Info: node.Info()}
	err = run.tree.Delete(node)
	if nil != err {
		err = treeError(err)
		return
	}
	err = run.removeFromOracle(entry.Key, entry.Info)

	observation = fmt.Sprintf("deleted %v", entry)
	return
}

func (run *Run) find(action Action) (observation string, err error) {
	_, found, err := run.exactQuery(action.Key)
	if found {
		observation = "found"
	} else {
		observation = "absent"
	}
	return
}

// neighbor checks PRED or SUCC.  The oracle answers with the nearest key
// strictly before (after) action.Key; the tree answers with the adjacent node,
// which under duplicates may carry the same key and then proves nothing.
func (run *Run) neighbor(action Action) (observation string, err error) {
	var (
		expectedKey int64
		neighbor    adapter.Node
		ok          bool
		status      oracle.Status
	)

	isPredecessor := Predecessor == action.Kind
	if isPredecessor {
		status, expectedKey = run.oracle.Predecessor(action.Key)
	} else {
		status, expectedKey = run.oracle.Successor(action.Key)
	}
	expected := statusString(status, expectedKey)

	node, found, err := run.exactQuery(action.Key)
	if nil != err {
		return
	}
	if !found {
		observation = oracle.KeyNotFound.String()
		if oracle.KeyNotFound != status {
			err = violation(blunder.EquivalenceViolation, expected, observation, "tree lacks %d but the oracle reports %s", action.Key, expected)
		}
		return
	}

	if isPredecessor {
		neighbor, ok, err = run.tree.Predecessor(node)
	} else {
		neighbor, ok, err = run.tree.Successor(node)
	}
	if nil != err {
		err = treeError(err)
		return
	}

	if !ok {
		observation = oracle.NoPredOrSucc.String()
		if oracle.NoPredOrSucc != status {
			err = violation(blunder.EquivalenceViolation, expected, observation, "%d should have no predecessor or successor", action.Key)
		}
		return
	}

	neighborKey := neighbor.Key()
	observation = statusString(oracle.Found, neighborKey)

	if (isPredecessor && (neighborKey > action.Key)) || (!isPredecessor && (neighborKey < action.Key)) {
		err = violation(blunder.EquivalenceViolation, expected, observation, "%v of %d is on the wrong side", action.Kind, action.Key)
		return
	}
	if neighborKey == action.Key {
		if run.config.NoDuplicates {
			err = violation(blunder.EquivalenceViolation, expected, observation, "%v of %d has the same key", action.Kind, action.Key)
		}
		return
	}
	if (oracle.Found != status) || (expectedKey != neighborKey) {
		err = violation(blunder.EquivalenceViolation, expected, observation, "%d should equal %d", neighborKey, expectedKey)
	}
	return
}

func (run *Run) rangeEnumerate(action Action) (observation string, err error) {
	expected := make([]oracle.Entry, 0)
	for cursor := run.oracle.StartRange(action.Key, action.High); oracle.End != cursor; cursor = run.oracle.NextRange(action.High, cursor) {
		expected = append(expected, run.oracle.Get(cursor))
	}

	nodes, err := run.tree.Enumerate(action.Key, action.High)
	if nil != err {
		err = treeError(err)
		return
	}
	observed := entriesOf(nodes)

	observation = fmt.Sprintf("%d entries", len(observed))
	err = run.compareSequences(fmt.Sprintf("range [%d,%d]", action.Key, action.High), expected, observed)
	return
}

func (run *Run) teardown() (observation string, err error) {
	drained := 0

	for {
		found, key := run.oracle.RandomEntry(run.picker)
		if !found {
			break
		}

		node, ok, queryErr := run.tree.ExactQuery(key)
		if nil != queryErr {
			err = treeError(queryErr)
			return
		}
		if !ok {
			err = violation(blunder.EquivalenceViolation, "present", "absent", "tree lost %d during teardown", key)
			return
		}

		entry := oracle.Entry{Key: node.Key(), Info: node.Info()}
		err = run.tree.Delete(node)
		if nil != err {
			err = treeError(err)
			return
		}
		err = run.removeFromOracle(entry.Key, entry.Info)
		if nil != err {
			return
		}
		drained++

		if run.config.NoDuplicates {
			_, ok, queryErr = run.tree.ExactQuery(key)
			if nil != queryErr {
				err = treeError(queryErr)
				return
			}
			if ok {
				err = violation(blunder.EquivalenceViolation, "absent", "present", "tree still holds %d after deleting it during teardown", key)
				return
			}
		}
	}

	// The oracle is empty, so the walk must visit nothing
	err = run.Verify()
	if nil != err {
		return
	}

	run.result.TornDown = true
	observation = fmt.Sprintf("drained %d", drained)
	return
}

func (run *Run) checkRep() (err error) {
	logger.Tracef("checkRep...")
	err = run.tree.CheckRep()
	if nil != err {
		err = treeError(err)
	}
	return
}

// Verify walks the tree in order in lockstep with an oracle cursor.  The
// first disagreement stops the walk; the cursor must be End afterwards.
func (run *Run) Verify() (err error) {
	logger.Tracef("RBTreeVerify...")

	run.result.Sizes = append(run.result.Sizes, run.oracle.Len())

	observed := make([]oracle.Entry, 0, run.oracle.Len())
	cursor := run.oracle.Start()

	err = run.tree.Walk(func(node adapter.Node) error {
		position := len(observed)
		observed = append(observed, oracle.Entry{Key: node.Key(), Info: node.Info()})

		if oracle.End == cursor {
			return run.traversalViolation(blunder.CardinalityViolation, position, "oracle is exhausted but the tree holds %d", node.Key())
		}
		expected := run.oracle.Get(cursor)
		if expected.Key != node.Key() {
			return run.traversalViolation(blunder.EquivalenceViolation, position, "key at position %d differs", position)
		}
		if run.config.NoDuplicates && (expected.Info != node.Info()) {
			return run.traversalViolation(blunder.EquivalenceViolation, position, "info at position %d differs", position)
		}

		cursor = run.oracle.Next(cursor)
		return nil
	})
	if nil != err {
		err = treeError(err)
		return
	}

	if oracle.End != cursor {
		err = run.traversalViolation(blunder.CardinalityViolation, len(observed), "tree is exhausted but the oracle holds %d", run.oracle.Get(cursor).Key)
		return
	}

	if run.config.TrackDuplicateInfo && !run.config.NoDuplicates {
		err = compareInfoGroups("in-order traversal", run.oracle.Entries(), observed)
		if nil != err {
			return
		}
	}

	if run.tree.Len() != len(observed) {
		err = violation(blunder.CardinalityViolation, len(observed), run.tree.Len(),
			"tree reports %d entries but its traversal visited %d", run.tree.Len(), len(observed))
	}
	return
}

// traversalViolation reports a lockstep disagreement found at position,
// followed by a diff of the oracle against a complete walk of the tree.
func (run *Run) traversalViolation(kind blunder.ViolationKind, position int, format string, args ...interface{}) error {
	expected := run.oracle.Entries()
	observed := run.treeEntries()

	what := fmt.Sprintf(format, args...)
	if blunder.CardinalityViolation == kind {
		what = fmt.Sprintf("oracle has %d entries, tree has %d", len(expected), len(observed)) + "; " + what
	}

	var expectedAt, observedAt interface{}
	if position < len(expected) {
		expectedAt = expected[position]
	}
	if position < len(observed) {
		observedAt = observed[position]
	}

	return violation(kind, expectedAt, observedAt, "in-order traversal: %s (-oracle +tree):\n%s",
		what, cmp.Diff(expected, observed))
}

// treeEntries walks the whole tree for diagnostics; a walk error just ends it.
func (run *Run) treeEntries() (entries []oracle.Entry) {
	entries = make([]oracle.Entry, 0, run.tree.Len())
	_ = run.tree.Walk(func(node adapter.Node) error {
		entries = append(entries, oracle.Entry{Key: node.Key(), Info: node.Info()})
		return nil
	})
	return
}

// compareSequences checks keys position by position, then length, then info
// as far as the duplicate policy allows.
func (run *Run) compareSequences(what string, expected []oracle.Entry, observed []oracle.Entry) (err error) {
	for i := 0; (i < len(expected)) && (i < len(observed)); i++ {
		if expected[i].Key != observed[i].Key {
			err = violation(blunder.EquivalenceViolation, expected[i].Key, observed[i].Key,
				"%s: key at position %d differs (-oracle +tree):\n%s", what, i, cmp.Diff(expected, observed))
			return
		}
	}

	if len(expected) != len(observed) {
		err = violation(blunder.CardinalityViolation, len(expected), len(observed),
			"%s: oracle has %d entries, tree has %d (-oracle +tree):\n%s", what, len(expected), len(observed), cmp.Diff(expected, observed))
		return
	}

	switch {
	case run.config.NoDuplicates:
		for i := range expected {
			if expected[i].Info != observed[i].Info {
				err = violation(blunder.EquivalenceViolation, expected[i], observed[i],
					"%s: info at position %d differs (-oracle +tree):\n%s", what, i, cmp.Diff(expected, observed))
				return
			}
		}
	case run.config.TrackDuplicateInfo:
		err = compareInfoGroups(what, expected, observed)
	}

	return
}

// compareInfoGroups compares, for every run of equal keys, the infos as a
// multiset.  expected and observed are known to agree on keys.
func compareInfoGroups(what string, expected []oracle.Entry, observed []oracle.Entry) (err error) {
	groupInfos := func(entries []oracle.Entry) []uint64 {
		infos := make([]uint64, len(entries))
		for i, entry := range entries {
			infos[i] = uint64(entry.Info)
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i] < infos[j] })
		return infos
	}

	for start := 0; start < len(expected); {
		end := start + 1
		for (end < len(expected)) && (expected[end].Key == expected[start].Key) {
			end++
		}

		expectedInfos := groupInfos(expected[start:end])
		observedInfos := groupInfos(observed[start:end])
		if diff := cmp.Diff(expectedInfos, observedInfos); "" != diff {
			err = violation(blunder.EquivalenceViolation, expectedInfos, observedInfos,
				"%s: infos of key %d differ (-oracle +tree):\n%s", what, expected[start].Key, diff)
			return
		}

		start = end
	}
	return
}
