// Package mocks provides gomock mocks of the gateway ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	idp := mocks.NewMockIdentityProvider(ctrl)
//	idp.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return(identity, nil)
package mocks

// Generate mocks for IdentityProvider and AuditRecorder from internal/ports.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/nextphaseit/portal-gateway/internal/ports IdentityProvider,AuditRecorder
