// internal/browser/resolver.go
package browser

// resolverJS resolves a serialized schemas.Locator in the page and applies one
// operation to the first match. It is evaluated as a function expression and
// called with (spec, op, arg). Operations:
//
//	probe  -> {count, visible, enabled}
//	fill   -> {status, reason}
//	point  -> {status, reason, x, y}  (scrolls into view and hit-tests the centre)
//
// status is "ok", "missing" or "not_actionable". Invalid selectors set error.
const resolverJS = `(function (spec, op, arg) {
  const norm = (s) => String(s == null ? '' : s).replace(/\s+/g, ' ').trim();
  const matches = (text, want, exact) => {
    if (exact) return norm(text) === norm(want);
    return norm(text).toLowerCase().includes(norm(want).toLowerCase());
  };

  const isVisible = (el) => {
    if (!el || !el.isConnected) return false;
    if (typeof el.checkVisibility === 'function' &&
        !el.checkVisibility({checkVisibilityCSS: true, visibilityProperty: true})) return false;
    const style = getComputedStyle(el);
    if (style.visibility === 'hidden' || style.visibility === 'collapse') return false;
    const r = el.getBoundingClientRect();
    return r.width > 0 && r.height > 0;
  };
  const isDisabled = (el) => {
    if (el.getAttribute('aria-disabled') === 'true') return true;
    if ('disabled' in el && el.disabled) return true;
    const fs = el.closest('fieldset[disabled]');
    return !!fs && !(fs.querySelector('legend') || {contains: () => false}).contains(el);
  };
  const hiddenFromTree = (el) => {
    for (let n = el; n && n.nodeType === 1; n = n.parentElement) {
      if (n.getAttribute('aria-hidden') === 'true') return true;
    }
    if (typeof el.checkVisibility === 'function') {
      return !el.checkVisibility({visibilityProperty: true});
    }
    const style = getComputedStyle(el);
    return style.display === 'none' || style.visibility === 'hidden';
  };

  const headings = {H1: 1, H2: 1, H3: 1, H4: 1, H5: 1, H6: 1};
  const implicitRole = (el) => {
    const tag = el.tagName;
    if (headings[tag]) return 'heading';
    switch (tag) {
      case 'BUTTON': case 'SUMMARY': return 'button';
      case 'A': case 'AREA': return el.hasAttribute('href') ? 'link' : null;
      case 'TEXTAREA': return 'textbox';
      case 'SELECT': return (el.multiple || el.size > 1) ? 'listbox' : 'combobox';
      case 'OPTION': return 'option';
      case 'IMG': return el.getAttribute('alt') === '' ? 'presentation' : 'img';
      case 'NAV': return 'navigation';
      case 'MAIN': return 'main';
      case 'UL': case 'OL': return 'list';
      case 'LI': return 'listitem';
      case 'DIALOG': return 'dialog';
      case 'FORM': return 'form';
      case 'TABLE': return 'table';
      case 'TR': return 'row';
      case 'TD': return 'cell';
      case 'TH': return 'columnheader';
      case 'PROGRESS': return 'progressbar';
      case 'INPUT': {
        const type = (el.getAttribute('type') || 'text').toLowerCase();
        switch (type) {
          case 'button': case 'submit': case 'reset': case 'image': return 'button';
          case 'checkbox': return 'checkbox';
          case 'radio': return 'radio';
          case 'range': return 'slider';
          case 'number': return 'spinbutton';
          case 'search': return el.hasAttribute('list') ? 'combobox' : 'searchbox';
          case 'hidden': return null;
          default: return el.hasAttribute('list') ? 'combobox' : 'textbox';
        }
      }
    }
    return null;
  };
  const roleOf = (el) => {
    const explicit = norm(el.getAttribute('role')).split(' ')[0];
    return explicit || implicitRole(el);
  };
  const textOf = (el) => norm(el.innerText !== undefined ? el.innerText : el.textContent);
  const nameOf = (el) => {
    const labelledBy = el.getAttribute('aria-labelledby');
    if (labelledBy) {
      const text = labelledBy.split(/\s+/).map((id) => {
        const n = document.getElementById(id);
        return n ? n.textContent : '';
      }).join(' ');
      if (norm(text)) return norm(text);
    }
    if (norm(el.getAttribute('aria-label'))) return norm(el.getAttribute('aria-label'));
    if (el.labels && el.labels.length) {
      return norm(Array.from(el.labels).map((l) => l.textContent).join(' '));
    }
    if (el.tagName === 'INPUT') {
      const type = (el.type || '').toLowerCase();
      if (type === 'submit') return norm(el.value || 'Submit');
      if (type === 'reset') return norm(el.value || 'Reset');
      if (type === 'button') return norm(el.value);
      if (type === 'image') return norm(el.alt);
      return norm(el.title || el.placeholder);
    }
    if (el.tagName === 'IMG') return norm(el.alt || el.title);
    return textOf(el) || norm(el.title);
  };

  const skipText = {SCRIPT: 1, STYLE: 1, NOSCRIPT: 1, TEMPLATE: 1, HEAD: 1, TITLE: 1, HTML: 1};
  const all = (root) => Array.from(root.querySelectorAll('*'));
  const findIn = (root, s) => {
    if (s.placeholder) {
      return all(root).filter((el) => el.hasAttribute('placeholder') &&
        matches(el.getAttribute('placeholder'), s.placeholder, s.exact));
    }
    if (s.role) {
      return all(root).filter((el) => roleOf(el) === s.role && !hiddenFromTree(el) &&
        (!s.name || matches(nameOf(el), s.name, s.exact)));
    }
    if (s.css) return Array.from(root.querySelectorAll(s.css));
    if (s.tag) return Array.from(root.querySelectorAll(s.tag));
    if (s.text) {
      const hits = all(root).filter((el) => !skipText[el.tagName] && matches(el.textContent, s.text, s.exact));
      return hits.filter((el) => !hits.some((other) => other !== el && el.contains(other)));
    }
    return [];
  };
  const resolve = (s) => {
    const roots = s.within ? resolve(s.within) : [document];
    const seen = new Set();
    let found = [];
    for (const root of roots) {
      for (const el of findIn(root, s)) {
        if (!seen.has(el)) { seen.add(el); found.push(el); }
      }
    }
    if (roots.length > 1) {
      found.sort((a, b) => (a.compareDocumentPosition(b) & Node.DOCUMENT_POSITION_FOLLOWING) ? -1 : 1);
    }
    if (s.first) found = found.slice(0, 1);
    return found;
  };

  let els;
  try {
    els = resolve(spec);
  } catch (e) {
    return {error: String(e && e.message || e)};
  }
  const el = els[0];

  switch (op) {
    case 'probe':
      return {count: els.length, visible: !!el && isVisible(el), enabled: !!el && !isDisabled(el)};

    case 'fill': {
      if (!el) return {status: 'missing'};
      if (!isVisible(el)) return {status: 'not_actionable', reason: 'element is not visible'};
      if (isDisabled(el)) return {status: 'not_actionable', reason: 'element is disabled'};
      if (el.isContentEditable) {
        el.focus();
        el.textContent = arg;
        el.dispatchEvent(new InputEvent('input', {bubbles: true, inputType: 'insertText', data: arg}));
        return {status: 'ok'};
      }
      const editable = (el.tagName === 'INPUT' &&
          !['button', 'submit', 'reset', 'image', 'checkbox', 'radio', 'file', 'hidden', 'range', 'color']
            .includes((el.type || '').toLowerCase())) || el.tagName === 'TEXTAREA';
      if (!editable) return {status: 'not_actionable', reason: 'element is not an editable input'};
      if (el.readOnly) return {status: 'not_actionable', reason: 'element is read-only'};
      el.focus();
      const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
      Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, arg);
      el.dispatchEvent(new Event('input', {bubbles: true}));
      el.dispatchEvent(new Event('change', {bubbles: true}));
      return {status: 'ok'};
    }

    case 'point': {
      if (!el) return {status: 'missing'};
      if (!isVisible(el)) return {status: 'not_actionable', reason: 'element is not visible'};
      if (isDisabled(el)) return {status: 'not_actionable', reason: 'element is disabled'};
      el.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'});
      const r = el.getBoundingClientRect();
      const x = r.left + r.width / 2;
      const y = r.top + r.height / 2;
      const hit = document.elementFromPoint(x, y);
      if (!hit || !(hit === el || el.contains(hit))) {
        const by = hit ? hit.tagName.toLowerCase() + (hit.id ? '#' + hit.id : '') : 'nothing';
        return {status: 'not_actionable', reason: 'click target is covered by ' + by};
      }
      return {status: 'ok', x: x, y: y};
    }
  }
  return {error: 'unknown operation ' + op};
})`
