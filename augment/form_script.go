package augment

// formScriptTemplate runs in the visitor's browser. it is ES5 so it works on the
// oldest browsers a marketing page is likely to see, and it has no dependencies.
//
// __LM_SLUG__ and __LM_ENDPOINT__ are replaced with JSON string literals, never raw text,
// so a value can not break out of the script.
//
// behaviour:
//   - every native form submit (capture phase) is intercepted, unless the form has data-lm-ignore
//   - fields are read through FormData, repeated keys become arrays, file inputs are skipped
//   - formless pages call window.LeadMagnet.submit(fields) or use a [data-lm-submit] element,
//     which collects inputs inside the closest [data-lm-form] (or the whole document)
//   - the payload is POSTed as {"slug": ..., "data": {...}} and a banner reports the result,
//     the page never navigates
const formScriptTemplate = `<script data-lm-form-handler>
(function () {
  var slug = __LM_SLUG__;
  var endpoint = __LM_ENDPOINT__;
  if (window.LeadMagnet && window.LeadMagnet.slug === slug) { return; }

  function addValue(data, key, value) {
    if (Object.prototype.hasOwnProperty.call(data, key)) {
      if (Object.prototype.toString.call(data[key]) !== '[object Array]') { data[key] = [data[key]]; }
      data[key].push(value);
    } else {
      data[key] = value;
    }
  }

  function collectForm(form) {
    var data = {};
    new FormData(form).forEach(function (value, key) {
      if (typeof value !== 'string') { return; }
      addValue(data, key, value);
    });
    return data;
  }

  function collectFields(root) {
    var data = {};
    var fields = root.querySelectorAll('input, select, textarea');
    for (var i = 0; i < fields.length; i++) {
      var field = fields[i];
      var key = field.name || field.id;
      var type = (field.type || '').toLowerCase();
      if (!key || field.disabled || type === 'file' || type === 'submit' || type === 'button' || type === 'reset') { continue; }
      if ((type === 'checkbox' || type === 'radio') && !field.checked) { continue; }
      if (field.tagName === 'SELECT' && field.multiple) {
        for (var j = 0; j < field.options.length; j++) {
          if (field.options[j].selected) { addValue(data, key, field.options[j].value); }
        }
        continue;
      }
      addValue(data, key, field.value);
    }
    return data;
  }

  function showBanner(ok, message) {
    if (!document.body) { return; }
    var banner = document.createElement('div');
    banner.setAttribute('role', 'status');
    banner.setAttribute('data-lm-banner', ok ? 'success' : 'error');
    banner.style.cssText = 'position:fixed;left:50%;bottom:24px;transform:translateX(-50%);' +
      'z-index:2147483647;padding:12px 20px;border-radius:6px;font:14px/1.4 sans-serif;color:#fff;' +
      'box-shadow:0 2px 8px rgba(0,0,0,.25);background:' + (ok ? '#1a7f37' : '#cf222e');
    banner.textContent = message;
    document.body.appendChild(banner);
    setTimeout(function () {
      if (banner.parentNode) { banner.parentNode.removeChild(banner); }
    }, 5000);
  }

  function setBusy(root, busy) {
    if (!root) { return; }
    var buttons = root.querySelectorAll('[type=submit], [data-lm-submit]');
    for (var i = 0; i < buttons.length; i++) { buttons[i].disabled = busy; }
  }

  function send(data, root, done) {
    setBusy(root, true);
    var request = new XMLHttpRequest();
    request.open('POST', endpoint, true);
    request.setRequestHeader('Content-Type', 'application/json');
    request.onreadystatechange = function () {
      if (request.readyState !== 4) { return; }
      setBusy(root, false);
      var ok = request.status >= 200 && request.status < 300;
      if (ok) {
        if (root && root.tagName === 'FORM') { root.reset(); }
        window.dataLayer = window.dataLayer || [];
        window.dataLayer.push({ event: 'lead_magnet_submission', leadMagnet: slug });
        showBanner(true, 'Thanks! Your submission was received.');
      } else {
        var message = 'Something went wrong. Please try again.';
        try {
          var body = JSON.parse(request.responseText);
          if (body && body.error) { message = body.error; }
        } catch (ignored) {}
        showBanner(false, message);
      }
      if (typeof done === 'function') { done(ok); }
    };
    request.send(JSON.stringify({ slug: slug, data: data }));
  }

  document.addEventListener('submit', function (event) {
    var form = event.target;
    if (!form || form.tagName !== 'FORM' || form.hasAttribute('data-lm-ignore')) { return; }
    event.preventDefault();
    send(collectForm(form), form);
  }, true);

  document.addEventListener('click', function (event) {
    var target = event.target;
    if (!target || !target.closest) { return; }
    var trigger = target.closest('[data-lm-submit]');
    if (!trigger || trigger.closest('form')) { return; }
    event.preventDefault();
    var container = trigger.closest('[data-lm-form]') || document;
    send(collectFields(container), container === document ? null : container);
  }, true);

  window.LeadMagnet = {
    slug: slug,
    submit: function (fields, done) {
      send(fields || collectFields(document), null, done);
    }
  };
})();
</script>`

// tagManagerHeadTemplate is the standard Google Tag Manager loader. __GTM_ID__ is a JSON string literal.
const tagManagerHeadTemplate = `<!-- Google Tag Manager -->
<script>(function(w,d,s,l,i){w[l]=w[l]||[];w[l].push({'gtm.start':
new Date().getTime(),event:'gtm.js'});var f=d.getElementsByTagName(s)[0],
j=d.createElement(s),dl=l!='dataLayer'?'&l='+l:'';j.async=true;j.src=
'https://www.googletagmanager.com/gtm.js?id='+i+dl;f.parentNode.insertBefore(j,f);
})(window,document,'script','dataLayer',__GTM_ID__);</script>
<!-- End Google Tag Manager -->`

// tagManagerBodyTemplate is the no-script fallback, placed right after <body>.
// __GTM_ID__ here is the bare, already validated container id.
const tagManagerBodyTemplate = `<!-- Google Tag Manager (noscript) -->
<noscript><iframe src="https://www.googletagmanager.com/ns.html?id=__GTM_ID__"
height="0" width="0" style="display:none;visibility:hidden"></iframe></noscript>
<!-- End Google Tag Manager (noscript) -->`
