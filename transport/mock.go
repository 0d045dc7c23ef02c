package transport

import "context"

// Mock is a test double for Transport.
// All function fields must be set before the corresponding method is called.
type Mock struct {
	ConnectFn        func(ctx context.Context, creds Credentials) error
	ResolveTargetFn  func(ctx context.Context, link string) (Target, error)
	UploadPartFn     func(ctx context.Context, data []byte, name string, partSizeKB int, progress ProgressFunc) (PartRef, error)
	SendFn           func(ctx context.Context, target Target, part PartRef) (*Message, error)
	GetMessagesFn    func(ctx context.Context, target Target, ids []MessageID) ([]*Message, error)
	DownloadMediaFn  func(ctx context.Context, msg *Message, progress ProgressFunc) ([]byte, error)
	DeleteMessagesFn func(ctx context.Context, target Target, ids []MessageID) error
}

var _ Transport = (*Mock)(nil)

// NewMockFrom returns a Mock whose functions all delegate to t, so tests can
// override a single method for fault injection.
func NewMockFrom(t Transport) *Mock {
	return &Mock{
		ConnectFn:        t.Connect,
		ResolveTargetFn:  t.ResolveTarget,
		UploadPartFn:     t.UploadPart,
		SendFn:           t.Send,
		GetMessagesFn:    t.GetMessages,
		DownloadMediaFn:  t.DownloadMedia,
		DeleteMessagesFn: t.DeleteMessages,
	}
}

func (m *Mock) Connect(ctx context.Context, creds Credentials) error {
	return m.ConnectFn(ctx, creds)
}
func (m *Mock) ResolveTarget(ctx context.Context, link string) (Target, error) {
	return m.ResolveTargetFn(ctx, link)
}
func (m *Mock) UploadPart(ctx context.Context, data []byte, name string, partSizeKB int, progress ProgressFunc) (PartRef, error) {
	return m.UploadPartFn(ctx, data, name, partSizeKB, progress)
}
func (m *Mock) Send(ctx context.Context, target Target, part PartRef) (*Message, error) {
	return m.SendFn(ctx, target, part)
}
func (m *Mock) GetMessages(ctx context.Context, target Target, ids []MessageID) ([]*Message, error) {
	return m.GetMessagesFn(ctx, target, ids)
}
func (m *Mock) DownloadMedia(ctx context.Context, msg *Message, progress ProgressFunc) ([]byte, error) {
	return m.DownloadMediaFn(ctx, msg, progress)
}
func (m *Mock) DeleteMessages(ctx context.Context, target Target, ids []MessageID) error {
	return m.DeleteMessagesFn(ctx, target, ids)
}
