package snapshot

import (
	"fmt"

	"browser-pilot/internal/entity"
)

// scopeQuery maps a snapshot scope to the CSS query the extraction script
// walks, in document order.
func scopeQuery(scope entity.Scope) string {
	switch scope {
	case entity.ScopeForm:
		return "form"
	case entity.ScopeInput:
		return "input, textarea, select"
	case entity.ScopeButton:
		return `button, input[type="submit"], input[type="button"], [role="button"]`
	default:
		return `form, input, textarea, select, button, [role="button"]`
	}
}

// extractionScript collects raw per-element facts; selector candidates are
// derived on the Go side so the ranking stays deterministic and testable.
func extractionScript(scope entity.Scope) string {
	return fmt.Sprintf(`(() => {
		try {
			const result = [];
			const seen = new Set();
			const nodes = document.querySelectorAll('%s');

			const classify = (el) => {
				const tag = el.tagName.toLowerCase();
				if (tag === 'form') return 'form';
				if (tag === 'button') return 'button';
				if (tag === 'input' && (el.type === 'submit' || el.type === 'button')) return 'button';
				if (el.getAttribute('role') === 'button') return 'button';
				return 'input';
			};

			for (const el of nodes) {
				if (seen.has(el)) continue;
				seen.add(el);

				const rect = el.getBoundingClientRect();
				const style = window.getComputedStyle(el);
				const visible = (
					rect.width > 0 &&
					rect.height > 0 &&
					style.display !== 'none' &&
					style.visibility !== 'hidden' &&
					style.opacity !== '0'
				);

				let text = (el.value || el.innerText || el.textContent || '').trim();
				if (text.length > 200) {
					text = text.substring(0, 200);
				}

				const classes = [];
				if (el.className && typeof el.className === 'string') {
					for (const c of el.className.split(' ')) {
						if (c) classes.push(c);
					}
				}

				result.push({
					kind: classify(el),
					tag: el.tagName.toLowerCase(),
					id: el.id || '',
					name: el.getAttribute('name') || '',
					placeholder: el.getAttribute('placeholder') || '',
					type: el.getAttribute('type') || '',
					text: text,
					classes: classes,
					required: el.required === true,
					visible: visible
				});
			}

			return result;
		} catch (e) {
			console.error('element extraction failed:', e);
			return [];
		}
	})()`, scopeQuery(scope))
}
