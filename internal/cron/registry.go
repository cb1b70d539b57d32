package cron

import "context"

// Job is a unit of scheduled maintenance work. Jobs must tolerate re-runs:
// after a crash or lock handoff the worker may execute the same job again
// before its previous cycle's effects are visible.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the worker's job set in registration order. Registering a
// job under a name that is already present replaces the earlier entry in
// place, keeping the run sequence stable.
type Registry struct {
	order  []string
	byName map[string]Job
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{byName: make(map[string]Job)}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job, replacing any existing job with the same name.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	name := job.Name()
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = job
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		jobs = append(jobs, r.byName[name])
	}
	return jobs
}

// Names returns the registered job names in run order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
