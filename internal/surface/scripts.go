package surface

// JavaScript probes evaluated inside the Business Suite tab. The host
// renders the inbox as a virtualized list whose rows carry no usable
// hyperlinks; logical thread identifiers only exist in the rendering
// framework's internal component state, so the probes walk each visible
// row's state chain upward (bounded) until an identifier-bearing node
// appears.

// visibleThreadsJS returns the identifiers of the currently rendered rows.
const visibleThreadsJS = `(() => {
	const results = [];
	document.querySelectorAll('._4bl9 a[role="row"]').forEach(el => {
		const fk = Object.keys(el).find(k => k.startsWith('__reactFiber'));
		if (!fk) return;
		let cur = el[fk];
		for (let i = 0; i < 35 && cur; i++) {
			const p = cur.memoizedProps || cur.pendingProps;
			if (p && p.threadID) {
				results.push({
					threadID: String(p.threadID).trim(),
					threadType: p.threadType ? String(p.threadType) : 'FB_MESSAGE',
					inboxID: p.inboxID ? String(p.inboxID) : ''
				});
				break;
			}
			cur = cur.return;
		}
	});
	return results;
})()`

// pageInboxIDJS pulls the mailbox id out of the page URL.
const pageInboxIDJS = `(new URLSearchParams(location.search)).get('asset_id') || ''`

// findListSnippet locates the sidebar scroll container. Three strategies:
// structural role lookup, ancestor walk from a rendered row, class-name
// fallback. Returns null when all fail.
const findListSnippet = `
	const findList = () => {
		const nav = document.querySelector('div[role="navigation"] div[data-testid="mw_chat_scroller"]');
		if (nav) return nav;
		const link = document.querySelector('._4bl9 a[role="row"]') || document.querySelector('div[role="navigation"] a');
		if (link) {
			let el = link;
			for (let i = 0; i < 25; i++) {
				el = el && el.parentElement;
				if (!el) break;
				const s = getComputedStyle(el);
				if ((s.overflowY === 'auto' || s.overflowY === 'scroll') &&
					el.scrollHeight > el.clientHeight + 20 &&
					el.getBoundingClientRect().left < 500) return el;
			}
		}
		return document.querySelector('.f98l6msc') || document.querySelector('div[role="navigation"]');
	};
`

// scrollListJS advances the list by a pixel amount (formatted in), falling
// back to whole-surface scrolling when no container exists.
const scrollListJS = `(() => {` + findListSnippet + `
	const el = findList();
	if (el) { el.scrollTop += %d; return true; }
	window.scrollBy(0, 1000);
	return false;
})()`

// forceListToMaxJS pins the list to its maximum scroll offset.
const forceListToMaxJS = `(() => {` + findListSnippet + `
	const el = findList();
	if (el) { el.scrollTop = el.scrollHeight; return true; }
	window.scrollTo(0, document.body.scrollHeight);
	return false;
})()`

// selectThreadJS focuses and clicks the rendered row whose state chain
// carries the target id (formatted in as a quoted string).
const selectThreadJS = `(() => {
	const target = %q;
	const rows = document.querySelectorAll('._4bl9 a[role="row"]');
	for (const row of rows) {
		const fk = Object.keys(row).find(k => k.startsWith('__reactFiber'));
		if (!fk) continue;
		let cur = row[fk];
		for (let j = 0; j < 35 && cur; j++) {
			const p = cur.memoizedProps || cur.pendingProps;
			if (p && String(p.threadID).trim() === target) {
				row.focus();
				row.click();
				return true;
			}
			cur = cur.return;
		}
	}
	return false;
})()`

// attributionPresentJS reports whether any attribution marker is rendered.
const attributionPresentJS = `(() => {
	const all = document.querySelectorAll('span, div');
	for (const el of all) {
		const t = (el.textContent || '').trim();
		if ((t.startsWith('ส่งโดย ') || t.startsWith('Sent by ')) && t.length < 120) return true;
	}
	return false;
})()`

// historyStepJS scrolls the message pane to its start and reports the
// previous offset plus candidate day-marker texts visible in the pane.
const historyStepJS = `(() => {
	const pane = document.querySelector('div[role="main"] div[data-testid="mw_chat_scroller"]')
		|| document.querySelector('[role="log"]')
		|| document.querySelector('[aria-label*="สนทนา"]')
		|| document.querySelector('[aria-label*="Message list"]');
	if (!pane) return { found: false, top: 0, markers: [] };
	const prev = pane.scrollTop;
	pane.scrollTop = 0;
	const markers = [];
	const main = document.querySelector('div[role="main"]') || pane;
	main.querySelectorAll('span, div').forEach(el => {
		if (el.children.length !== 0 || markers.length >= 40) return;
		const t = (el.textContent || '').trim();
		if (t.length >= 6 && t.length <= 24 && /\d{4}/.test(t)) markers.push(t);
	});
	return { found: true, top: prev, markers };
})()`

// snapshotJS serializes every marker-bearing text node together with its
// bounded state chain (20 DOM levels x 15 state levels, attribution keys
// only) and up to 6 ancestor levels of sibling texts.
const snapshotJS = `(() => {
	const MARKERS = ['ส่งโดย ', 'Sent by '];
	const ID_KEYS = ['responseId', 'messageId', 'responseText', 'consumerText', 'text'];
	const MSG_KEYS = ['message_id', 'id', 'text'];
	const depthOf = (root) => {
		let d = 0, level = Array.from(root.children);
		while (level.length && d <= 6) {
			const next = [];
			level.forEach(e => next.push(...e.children));
			if (!next.length) break;
			d++;
			level = next;
		}
		return d;
	};
	const nodes = [];
	document.querySelectorAll('span, div').forEach(el => {
		const text = (el.textContent || '').trim();
		if (!MARKERS.some(m => m && text.startsWith(m))) return;
		const chain = [];
		let cur = el;
		for (let i = 0; i < 20 && cur; i++) {
			const fk = Object.keys(cur).find(k => k.startsWith('__reactFiber'));
			if (fk) {
				let node = cur[fk];
				for (let j = 0; j < 15 && node; j++) {
					const p = node.memoizedProps;
					if (p) {
						const entry = {};
						ID_KEYS.forEach(k => { if (typeof p[k] === 'string' && p[k]) entry[k] = p[k]; });
						if (p.message && typeof p.message === 'object') {
							const m = {};
							MSG_KEYS.forEach(k => { if (typeof p.message[k] === 'string' && p.message[k]) m[k] = p.message[k]; });
							if (Object.keys(m).length) entry.message = m;
						}
						if (Object.keys(entry).length) chain.push(entry);
					}
					node = node.return;
				}
			}
			cur = cur.parentElement;
		}
		const ancestors = [];
		let base = el;
		for (let d = 0; d < 6; d++) {
			const parent = base && base.parentElement;
			if (!parent) break;
			const siblings = [];
			for (const sib of parent.children) {
				if (sib === base) continue;
				const st = (sib.textContent || '').trim();
				if (st) siblings.push(st.slice(0, 500));
			}
			ancestors.push({ siblings });
			base = parent;
		}
		nodes.push({ text: text.slice(0, 300), childLevels: depthOf(el), chain, ancestors });
	});
	return nodes;
})()`
