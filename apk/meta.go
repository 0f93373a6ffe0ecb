package apk

const androidNs = "http://schemas.android.com/apk/res/android"

// ManifestMeta collects basic facts from AndroidManifest.xml events.
type ManifestMeta struct {
  Package     string   `json:"package"`
  VersionCode string   `json:"versionCode,omitempty"`
  VersionName string   `json:"versionName,omitempty"`
  MinSdk      string   `json:"minSdkVersion,omitempty"`
  TargetSdk   string   `json:"targetSdkVersion,omitempty"`
  Label       string   `json:"label,omitempty"`
  Icon        string   `json:"icon,omitempty"`
  Permissions []string `json:"permissions,omitempty"`
  Activities  []string `json:"activities,omitempty"`

  depth int
}

func (m *ManifestMeta) OnEvent(ev Event) {
  switch ev.Type {
  case ElementStart:
    m.depth++
  case ElementEnd:
    m.depth--
    return
  default:
    return
  }
  switch {
  case ev.Name == "manifest" && m.depth == 1:
    m.Package = attrValue(ev.Attrs, "", "package")
    m.VersionCode = attrValue(ev.Attrs, androidNs, "versionCode")
    m.VersionName = attrValue(ev.Attrs, androidNs, "versionName")
  case ev.Name == "uses-sdk":
    m.MinSdk = attrValue(ev.Attrs, androidNs, "minSdkVersion")
    m.TargetSdk = attrValue(ev.Attrs, androidNs, "targetSdkVersion")
  case ev.Name == "application":
    m.Label = attrValue(ev.Attrs, androidNs, "label")
    m.Icon = attrValue(ev.Attrs, androidNs, "icon")
  case ev.Name == "uses-permission":
    if s := attrValue(ev.Attrs, androidNs, "name"); s != "" {
      m.Permissions = append(m.Permissions, s)
    }
  case ev.Name == "activity" || ev.Name == "activity-alias":
    if s := attrValue(ev.Attrs, androidNs, "name"); s != "" {
      m.Activities = append(m.Activities, s)
    }
  }
}

func attrValue(attrs []Attr, ns, name string) string {
  for _, a := range attrs {
    if a.Namespace == ns && a.Name == name {
      return a.Value
    }
  }
  return ""
}
