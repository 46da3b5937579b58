package chrome

import "fmt"

// snapshotScript serializes the document into the dom.LiveSnapshot JSON
// shape. Text nodes keep their value; video, source and iframe elements carry
// their resolved src; videos carry their intrinsic size and duration.
func snapshotScript(maxBackground int) string {
	return fmt.Sprintf(`(() => {
	const cap = %d;
	let styled = 0;
	const walk = (n) => {
		if (n.nodeType === Node.TEXT_NODE) {
			return n.nodeValue ? { x: n.nodeValue } : null;
		}
		if (n.nodeType !== Node.ELEMENT_NODE) {
			return null;
		}
		const o = { t: n.tagName.toLowerCase() };
		if (n.attributes.length) {
			o.a = {};
			for (const a of n.attributes) o.a[a.name] = a.value;
		}
		if ((o.t === "video" || o.t === "source" || o.t === "iframe") && n.src) {
			o.u = n.src;
		}
		if (o.t === "video") {
			o.m = {
				vw: n.videoWidth || 0,
				vh: n.videoHeight || 0,
				d: Number.isFinite(n.duration) ? n.duration : null,
			};
		}
		if (cap === 0 || styled < cap) {
			styled++;
			try {
				const bg = getComputedStyle(n).backgroundImage;
				if (bg && bg !== "none") o.bg = bg;
			} catch (e) {
				o.se = String(e);
			}
		}
		const kids = [];
		for (const c of n.childNodes) {
			const k = walk(c);
			if (k) kids.push(k);
		}
		if (kids.length) o.c = kids;
		return o;
	};
	const root = document.documentElement;
	return JSON.stringify({
		url: location.href,
		title: document.title,
		html: root ? root.outerHTML : "",
		root: root ? walk(root) : null,
	});
})()`, maxBackground)
}

const observerScript = `(() => {
	if (window.` + observerProperty + `) window.` + observerProperty + `.disconnect();
	const media = "video, iframe";
	const obs = new MutationObserver((records) => {
		const added = [];
		for (const r of records) {
			for (const n of r.addedNodes) {
				if (n.nodeType !== Node.ELEMENT_NODE) continue;
				added.push({ t: n.tagName, m: !!n.querySelector(media) });
			}
		}
		if (added.length) window.` + mutationBinding + `(JSON.stringify(added));
	});
	obs.observe(document.body || document.documentElement, { childList: true, subtree: true });
	window.` + observerProperty + ` = obs;
})()`

const disconnectScript = `(() => {
	if (window.` + observerProperty + `) {
		window.` + observerProperty + `.disconnect();
		delete window.` + observerProperty + `;
	}
})()`
