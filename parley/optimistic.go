package parley

// optimistically captures a snapshot, applies a local mutation, then runs
// commit (typically an outbound emit). If commit fails, revert restores the
// captured state and the commit error is returned. The snapshot is taken
// before apply, so revert always sees the pre-optimistic state.
func optimistically[T any](snapshot func() T, apply func(), commit func() error, revert func(T)) error {
	prior := snapshot()
	apply()
	if err := commit(); err != nil {
		revert(prior)
		return err
	}
	return nil
}
