package stage

// Health reports whether a pipeline stage can accept work, with detail
// describing what is missing when it cannot.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks the named stage ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks the named stage unavailable with an operator-facing reason.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
