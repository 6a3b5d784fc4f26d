package pacrunner

// prelude defines the PAC helper functions that can be written in script.
// dnsResolve, myIpAddress and alert are provided from Go.
const prelude = `
function isPlainHostName(host) {
  return host.indexOf(".") < 0;
}

function dnsDomainIs(host, domain) {
  return host.length >= domain.length &&
    host.substring(host.length - domain.length) === domain;
}

function localHostOrDomainIs(host, hostdom) {
  return host === hostdom || hostdom.lastIndexOf(host + ".", 0) === 0;
}

function isResolvable(host) {
  return dnsResolve(host) !== null;
}

function convert_addr(ipchars) {
  var bytes = ipchars.split(".");
  return ((bytes[0] & 0xff) << 24) | ((bytes[1] & 0xff) << 16) |
    ((bytes[2] & 0xff) << 8) | (bytes[3] & 0xff);
}

function isInNet(ipaddr, pattern, maskstr) {
  var test = /^(\d{1,4})\.(\d{1,4})\.(\d{1,4})\.(\d{1,4})$/.exec(ipaddr);
  if (test === null) {
    ipaddr = dnsResolve(ipaddr);
    if (ipaddr === null) return false;
  } else if (test[1] > 255 || test[2] > 255 || test[3] > 255 || test[4] > 255) {
    return false;
  }
  var host = convert_addr(ipaddr);
  var pat = convert_addr(pattern);
  var mask = convert_addr(maskstr);
  return (host & mask) === (pat & mask);
}

function dnsDomainLevels(host) {
  return host.split(".").length - 1;
}

function shExpMatch(url, pattern) {
  pattern = pattern.replace(/\./g, "\\.").replace(/\*/g, ".*").replace(/\?/g, ".");
  return new RegExp("^" + pattern + "$").test(url);
}

var __pacDays = ["SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"];

function __pacArgs(args) {
  var list = Array.prototype.slice.call(args);
  var gmt = list.length > 0 && list[list.length - 1] === "GMT";
  if (gmt) list.pop();
  return { list: list, now: new Date(), gmt: gmt };
}

function weekdayRange() {
  var a = __pacArgs(arguments);
  var day = a.gmt ? a.now.getUTCDay() : a.now.getDay();
  var start = __pacDays.indexOf(a.list[0]);
  var end = a.list.length > 1 ? __pacDays.indexOf(a.list[1]) : start;
  if (start < 0 || end < 0) return false;
  return start <= end ? (day >= start && day <= end) : (day >= start || day <= end);
}

function timeRange() {
  var a = __pacArgs(arguments);
  var hour = a.gmt ? a.now.getUTCHours() : a.now.getHours();
  if (a.list.length === 1) return hour === a.list[0];
  if (a.list.length === 2) {
    var start = a.list[0], end = a.list[1];
    return start <= end ? (hour >= start && hour < end) : (hour >= start || hour < end);
  }
  return false;
}
`
