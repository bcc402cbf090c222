package service

import "sync"

// ServiceFactory hands out one instance of each service, built lazily from
// the shared Deps.
type ServiceFactory struct {
	deps Deps

	authOnce    sync.Once
	profileOnce sync.Once
	postOnce    sync.Once
	commentOnce sync.Once
	reactOnce   sync.Once

	auth    *AuthService
	profile *ProfileService
	post    *PostService
	comment *CommentService
	react   *ReactService
}

func NewServiceFactory(deps Deps) *ServiceFactory {
	return &ServiceFactory{deps: deps}
}

func (f *ServiceFactory) Deps() Deps {
	return f.deps
}

// AuthService returns the auth service instance (singleton)
func (f *ServiceFactory) AuthService() *AuthService {
	f.authOnce.Do(func() { f.auth = NewAuthService(f.deps) })
	return f.auth
}

func (f *ServiceFactory) ProfileService() *ProfileService {
	f.profileOnce.Do(func() { f.profile = NewProfileService(f.deps) })
	return f.profile
}

func (f *ServiceFactory) PostService() *PostService {
	f.postOnce.Do(func() { f.post = NewPostService(f.deps) })
	return f.post
}

func (f *ServiceFactory) CommentService() *CommentService {
	f.commentOnce.Do(func() { f.comment = NewCommentService(f.deps) })
	return f.comment
}

func (f *ServiceFactory) ReactService() *ReactService {
	f.reactOnce.Do(func() { f.react = NewReactService(f.deps) })
	return f.react
}
