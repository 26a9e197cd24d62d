package buffer_pool

import "github.com/naver/rye-pgbuf/server/innodb/common"

// SetPageType stamps h's page with t, used once when a freshly
// allocated page is formatted for the first time (spec.md §4.8).
func (p *BufferPool) SetPageType(h *PageHandle, t common.PageType) {
	h.bcb.mu.Lock()
	defer h.bcb.mu.Unlock()
	h.bcb.page.SetType(t)
}

// GetPageType reads h's stamped page type (spec.md §6 get_page_type).
func (p *BufferPool) GetPageType(h *PageHandle) common.PageType {
	h.bcb.mu.Lock()
	defer h.bcb.mu.Unlock()
	return h.bcb.page.Type()
}

// CheckPageType validates that h's stamped type is compatible with
// want, skipping the check entirely during redo recovery (where a page
// may still carry its pre-image type until the redo record reapplies
// it) or when DebugPageValidationLevel is 0 (spec.md §4.8
// check_page_type).
func (p *BufferPool) CheckPageType(h *PageHandle, want common.PageType) bool {
	if p.cfg.DebugPageValidationLevel < 1 {
		return true
	}
	if p.log != nil && p.log.IsRecoveryRedo() {
		return true
	}
	h.bcb.mu.Lock()
	defer h.bcb.mu.Unlock()
	return common.CompatiblePageType(h.bcb.page.Type(), want)
}
