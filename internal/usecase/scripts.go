package usecase

// labelScanScript compares the trimmed text of every label, and of the span
// nested in it, against the wanted label with ===. It never uses substring
// containment. On the first match it optionally clicks the embedded control.
const labelScanScript = `({ label, activate }) => {
	const wanted = String(label).trim();
	const containers = Array.from(document.querySelectorAll('label'));
	const observed = containers.map((el) => {
		const nested = el.querySelector('span');
		const inner = nested ? (nested.textContent || '').trim() : '';
		return inner || (el.textContent || '').trim();
	});

	for (let i = 0; i < containers.length; i++) {
		const el = containers[i];
		const own = (el.textContent || '').trim();
		const nested = el.querySelector('span');
		const inner = nested ? (nested.textContent || '').trim() : null;

		let text = null;
		if (own === wanted) {
			text = own;
		} else if (inner !== null && inner === wanted) {
			text = inner;
		}
		if (text === null) {
			continue;
		}

		if (activate) {
			const control = el.querySelector('input, [role="radio"]');
			(control || el).click();
		}

		return { matched: true, index: i, text: text, activated: !!activate, labels: observed };
	}

	return { matched: false, index: -1, text: '', activated: false, labels: observed };
}`

// dateInputScript sets the value of the single date-like input and fires the
// events frameworks listen on.
const dateInputScript = `({ value }) => {
	const inputs = Array.from(document.querySelectorAll('input')).filter((el) => {
		const hint = ((el.name || '') + ' ' + (el.id || '') + ' ' + (el.className || '')).toLowerCase();
		return el.type === 'date' || hint.includes('date');
	});
	if (inputs.length !== 1) {
		return { set: false, count: inputs.length };
	}

	const el = inputs[0];
	const setter = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, 'value').set;
	setter.call(el, value);
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));

	return { set: el.value === value, count: 1 };
}`
