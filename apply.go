package kstore

// ApplyDiff applies diffs to base strictly left to right and returns the
// resulting snapshot. base is never modified.
//
// A diff that removes or modifies an entry the working snapshot lacks was
// computed against a different base; ApplyDiff fails with a *StaleBaseError
// instead of skipping it. A base that repeats an identity key fails with a
// *DuplicateKeyError. Because the result is built on a private copy, a
// failed call leaves nothing partially applied.
func ApplyDiff(base Snapshot, diffs ...SnapshotDiff) (Snapshot, error) {
	if err := base.Validate(); err != nil {
		return Snapshot{}, err
	}
	current := base.Clone()
	for _, diff := range diffs {
		next, err := applyDiff(current, diff)
		if err != nil {
			return Snapshot{}, err
		}
		current = next
	}
	return current, nil
}

func applyDiff(s Snapshot, diff SnapshotDiff) (Snapshot, error) {
	var err error

	s.Project, err = applyProject(s.Project, diff.Project)
	if err != nil {
		return Snapshot{}, err
	}
	s.Datasets, err = diff.Datasets.apply(scopeDatasets, s.Datasets, DatasetEntry.Key, DatasetEntry.clone)
	if err != nil {
		return Snapshot{}, err
	}
	s.GeneralContext, err = diff.GeneralContext.apply(scopeGeneralContext, s.GeneralContext, NamedContext.Key, NamedContext.clone)
	if err != nil {
		return Snapshot{}, err
	}
	s.GeneralCronJobs, err = diff.GeneralCronJobs.apply(scopeGeneralCronJobs, s.GeneralCronJobs, identity[CronJobSpec])
	if err != nil {
		return Snapshot{}, err
	}
	s.Channels, err = applyChannels(s.Channels, diff.Channels)
	if err != nil {
		return Snapshot{}, err
	}
	s.SystemPrompt = cloneOptional(diff.SystemPrompt.apply(s.SystemPrompt))
	return s, nil
}

func applyProject(p ProjectInfo, diff ProjectDiff) (ProjectInfo, error) {
	teams, err := diff.Teams.apply(scopeTeams, p.Teams, cloneMembers)
	if err != nil {
		return ProjectInfo{}, err
	}
	return ProjectInfo{
		Name:    diff.Name.apply(p.Name),
		Version: diff.Version.apply(p.Version),
		Teams:   teams,
	}, nil
}

func applyChannels(channels map[string]ChannelScope, diff ChannelsDiff) (map[string]ChannelScope, error) {
	if !diff.HasChanges() {
		return channels, nil
	}

	out := make(map[string]ChannelScope, len(channels)+len(diff.Added))
	for name, scope := range channels {
		out[name] = scope
	}

	for _, name := range diff.Removed {
		if _, ok := out[name]; !ok {
			return nil, &StaleBaseError{Scope: scopeChannels, Key: name, Action: ActionRemoved}
		}
		delete(out, name)
	}

	for _, name := range sortedKeys(diff.Modified) {
		scope, ok := out[name]
		if !ok {
			return nil, &StaleBaseError{Scope: scopeChannels, Key: name, Action: ActionModified}
		}
		next, err := applyChannelScope(name, scope, diff.Modified[name])
		if err != nil {
			return nil, err
		}
		out[name] = next
	}

	for name, scope := range diff.Added {
		out[name] = scope.clone()
	}

	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func applyChannelScope(name string, scope ChannelScope, diff ChannelScopeDiff) (ChannelScope, error) {
	cronJobs, err := diff.CronJobs.apply(channelCronJobsScope(name), scope.CronJobs, identity[CronJobSpec])
	if err != nil {
		return ChannelScope{}, err
	}
	notes, err := diff.Context.apply(channelContextScope(name), scope.Context, NamedContext.Key, NamedContext.clone)
	if err != nil {
		return ChannelScope{}, err
	}
	return ChannelScope{
		CronJobs:     cronJobs,
		Context:      notes,
		SystemPrompt: cloneOptional(diff.SystemPrompt.apply(scope.SystemPrompt)),
	}, nil
}
