package tools

import "context"

func (r *Registry) currentTime(_ context.Context, _ map[string]string) (string, error) {
	return r.now().In(r.loc).Format("3:04 PM MST"), nil
}

func (r *Registry) currentDate(_ context.Context, _ map[string]string) (string, error) {
	return r.now().In(r.loc).Format("Monday, January 2, 2006"), nil
}
